package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// CreateWaitingFor inserts a new active obligation. Callers enforce at
// most one "waiting" row per conversation_id.
func (s *Store) CreateWaitingFor(ctx context.Context, wf *WaitingFor) (int64, error) {
	if wf.Status == "" {
		wf.Status = WaitingForWaiting
	}
	res, err := s.ExecContext(ctx, `
		INSERT INTO waiting_for (email_id, conversation_id, waiting_since, expected_from, description, status, nudge_after_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, wf.EmailID, wf.ConversationID, wf.WaitingSince, wf.ExpectedFrom, wf.Description, string(wf.Status), wf.NudgeAfterHours)
	if err != nil {
		return 0, &triageerr.StoreError{Op: "CreateWaitingFor", Err: err}
	}
	return res.LastInsertId()
}

// ListActiveWaitingFor returns all rows with status = waiting, for the
// WaitingForTracker's per-cycle scan.
func (s *Store) ListActiveWaitingFor(ctx context.Context) ([]WaitingFor, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, email_id, conversation_id, waiting_since, expected_from, description, status, nudge_after_hours, resolved_at
		FROM waiting_for WHERE status = 'waiting'
		ORDER BY waiting_since ASC
	`)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListActiveWaitingFor", Err: err}
	}
	defer rows.Close()

	var out []WaitingFor
	for rows.Next() {
		wf, err := scanWaitingFor(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListActiveWaitingFor", Err: err}
		}
		out = append(out, *wf)
	}
	return out, rows.Err()
}

// ResolveWaitingFor performs the CAS waiting -> received|expired.
// Returns whether the transition actually occurred, so callers (the
// WaitingForTracker) count only real transitions — re-invocation on an
// already-resolved row returns false and leaves resolved_at unchanged
// (spec.md §8 invariant 3).
func (s *Store) ResolveWaitingFor(ctx context.Context, id int64, status WaitingForStatus) (bool, error) {
	now := time.Now().UTC()
	res, err := s.ExecContext(ctx, `
		UPDATE waiting_for SET status = ?, resolved_at = ?
		WHERE id = ? AND status = 'waiting'
	`, string(status), now, id)
	if err != nil {
		return false, &triageerr.StoreError{Op: "ResolveWaitingFor", Err: err}
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// ListOverdueWaitingFor returns active items whose hours_waiting meets
// or exceeds minHours, for the digest generator.
func (s *Store) ListOverdueWaitingFor(ctx context.Context, minHours float64) ([]WaitingFor, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(minHours * float64(time.Hour)))
	rows, err := s.QueryContext(ctx, `
		SELECT id, email_id, conversation_id, waiting_since, expected_from, description, status, nudge_after_hours, resolved_at
		FROM waiting_for WHERE status = 'waiting' AND waiting_since <= ?
		ORDER BY waiting_since ASC
	`, cutoff)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListOverdueWaitingFor", Err: err}
	}
	defer rows.Close()

	var out []WaitingFor
	for rows.Next() {
		wf, err := scanWaitingFor(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListOverdueWaitingFor", Err: err}
		}
		out = append(out, *wf)
	}
	return out, rows.Err()
}

func scanWaitingFor(row rowScanner) (*WaitingFor, error) {
	wf := &WaitingFor{}
	var status string
	var resolvedAt sql.NullTime
	err := row.Scan(&wf.ID, &wf.EmailID, &wf.ConversationID, &wf.WaitingSince, &wf.ExpectedFrom,
		&wf.Description, &status, &wf.NudgeAfterHours, &resolvedAt)
	if err != nil {
		return nil, err
	}
	wf.Status = WaitingForStatus(status)
	if resolvedAt.Valid {
		v := resolvedAt.Time
		wf.ResolvedAt = &v
	}
	return wf, nil
}
