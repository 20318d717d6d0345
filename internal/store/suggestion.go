package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// CreateSuggestion inserts a new pending suggestion and returns its id.
// Callers enforce "at most one pending suggestion per email" by only
// calling this when no pending row already exists for the email.
func (s *Store) CreateSuggestion(ctx context.Context, sg *Suggestion) (int64, error) {
	if sg.Status == "" {
		sg.Status = SuggestionPending
	}
	if sg.CreatedAt.IsZero() {
		sg.CreatedAt = time.Now().UTC()
	}
	res, err := s.ExecContext(ctx, `
		INSERT INTO suggestions (
			email_id, created_at, suggested_folder, suggested_priority,
			suggested_action_type, confidence, reasoning, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sg.EmailID, sg.CreatedAt, sg.SuggestedFolder, sg.SuggestedPriority,
		sg.SuggestedActionType, sg.Confidence, sg.Reasoning, string(sg.Status))
	if err != nil {
		return 0, &triageerr.StoreError{Op: "CreateSuggestion", Err: err}
	}
	return res.LastInsertId()
}

// GetPendingSuggestionForEmail returns the current pending suggestion
// for an email, if any, enforcing the at-most-one-pending invariant at
// the read side.
func (s *Store) GetPendingSuggestionForEmail(ctx context.Context, emailID string) (*Suggestion, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, email_id, created_at, suggested_folder, suggested_priority,
		       suggested_action_type, confidence, reasoning, status,
		       approved_folder, approved_priority, approved_action_type, resolved_at
		FROM suggestions WHERE email_id = ? AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1
	`, emailID)
	sg, err := scanSuggestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &triageerr.StoreError{Op: "GetPendingSuggestionForEmail", Err: err}
	}
	return sg, nil
}

// ApproveSuggestion performs an atomic CAS: pending ->
// approved|partial|rejected (any other status is treated as approved),
// only if the current status is pending. Returns whether the transition
// occurred (spec.md §4.1, invariant 2 in §8).
func (s *Store) ApproveSuggestion(ctx context.Context, id int64, status SuggestionStatus, folder, priority, actionType *string) (bool, error) {
	if status != SuggestionApproved && status != SuggestionPartial && status != SuggestionRejected {
		status = SuggestionApproved
	}
	now := time.Now().UTC()
	res, err := s.ExecContext(ctx, `
		UPDATE suggestions SET
			status = ?, approved_folder = ?, approved_priority = ?, approved_action_type = ?, resolved_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), NullString(folder), NullString(priority), NullString(actionType), now, id)
	if err != nil {
		return false, &triageerr.StoreError{Op: "ApproveSuggestion", Err: err}
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// MarkSuggestionAutoApproved performs the CAS pending -> auto_approved,
// copying the suggested triple to the approved triple.
func (s *Store) MarkSuggestionAutoApproved(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC()
	res, err := s.ExecContext(ctx, `
		UPDATE suggestions SET
			status = 'auto_approved', resolved_at = ?,
			approved_folder = suggested_folder,
			approved_priority = suggested_priority,
			approved_action_type = suggested_action_type
		WHERE id = ? AND status = 'pending'
	`, now, id)
	if err != nil {
		return false, &triageerr.StoreError{Op: "MarkSuggestionAutoApproved", Err: err}
	}
	rows, _ := res.RowsAffected()
	return rows > 0, nil
}

// ExpireOldSuggestions bulk-CASes pending rows older than maxAge to
// expired, returning the count transitioned.
func (s *Store) ExpireOldSuggestions(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.ExecContext(ctx, `
		UPDATE suggestions SET status = 'expired', resolved_at = ?
		WHERE status = 'pending' AND created_at < ?
	`, time.Now().UTC(), cutoff)
	if err != nil {
		return 0, &triageerr.StoreError{Op: "ExpireOldSuggestions", Err: err}
	}
	return res.RowsAffected()
}

// GetAutoApprovableSuggestions returns pending rows meeting the
// confidence/age thresholds, excluding the priority that must never be
// auto-approved (spec.md §4.1, §8 invariant 7).
func (s *Store) GetAutoApprovableSuggestions(ctx context.Context, f AutoApprovableFilter) ([]Suggestion, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(f.MinAgeHours * float64(time.Hour)))
	rows, err := s.QueryContext(ctx, `
		SELECT id, email_id, created_at, suggested_folder, suggested_priority,
		       suggested_action_type, confidence, reasoning, status,
		       approved_folder, approved_priority, approved_action_type, resolved_at
		FROM suggestions
		WHERE status = 'pending'
		  AND confidence >= ?
		  AND created_at <= ?
		  AND suggested_priority != ?
		ORDER BY created_at ASC
	`, f.MinConfidence, cutoff, f.ExcludedPriority)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "GetAutoApprovableSuggestions", Err: err}
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "GetAutoApprovableSuggestions", Err: err}
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// ListSuggestions returns suggestions optionally filtered by status, for
// the CLI's "suggestions list" introspection command.
func (s *Store) ListSuggestions(ctx context.Context, status string, limit int) ([]Suggestion, error) {
	query := `
		SELECT id, email_id, created_at, suggested_folder, suggested_priority,
		       suggested_action_type, confidence, reasoning, status,
		       approved_folder, approved_priority, approved_action_type, resolved_at
		FROM suggestions WHERE 1=1
	`
	var args []any
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListSuggestions", Err: err}
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListSuggestions", Err: err}
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// ListSuggestionsForEmail returns every suggestion ever created for an
// email, most recent first, for folder-inheritance lookups.
func (s *Store) ListSuggestionsForEmail(ctx context.Context, emailID string) ([]Suggestion, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, email_id, created_at, suggested_folder, suggested_priority,
		       suggested_action_type, confidence, reasoning, status,
		       approved_folder, approved_priority, approved_action_type, resolved_at
		FROM suggestions WHERE email_id = ? ORDER BY created_at DESC
	`, emailID)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListSuggestionsForEmail", Err: err}
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListSuggestionsForEmail", Err: err}
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// ListCorrectionsSince returns resolved suggestions where the user's
// decision (partial or rejected) diverged from what was suggested,
// resolved at or after since — the PreferenceLearner's input set (spec
// §4.8).
func (s *Store) ListCorrectionsSince(ctx context.Context, since time.Time) ([]Suggestion, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT id, email_id, created_at, suggested_folder, suggested_priority,
		       suggested_action_type, confidence, reasoning, status,
		       approved_folder, approved_priority, approved_action_type, resolved_at
		FROM suggestions
		WHERE status IN ('partial', 'rejected') AND resolved_at >= ?
		ORDER BY resolved_at DESC
	`, since)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListCorrectionsSince", Err: err}
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, &triageerr.StoreError{Op: "ListCorrectionsSince", Err: err}
		}
		if sg.ApprovedFolder != nil && *sg.ApprovedFolder == sg.SuggestedFolder &&
			sg.ApprovedPriority != nil && *sg.ApprovedPriority == sg.SuggestedPriority &&
			sg.ApprovedActionType != nil && *sg.ApprovedActionType == sg.SuggestedActionType {
			continue
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// OverdueReply is one pending REPLY suggestion past its warning or
// critical age threshold, for the digest generator (spec §4.13).
type OverdueReply struct {
	EmailID      string
	Subject      string
	SenderEmail  string
	HoursWaiting float64
	Level        string // "warning" | "critical"
}

// ListOverdueReplies returns pending suggestions of action type REPLY
// whose age has crossed at least the warning threshold, joined against
// the owning email for subject/sender display fields.
func (s *Store) ListOverdueReplies(ctx context.Context, warningHours, criticalHours int) ([]OverdueReply, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT sg.email_id, e.subject, e.sender_email, sg.created_at
		FROM suggestions sg
		JOIN emails e ON e.id = sg.email_id
		WHERE sg.status = 'pending' AND sg.suggested_action_type = 'REPLY'
		ORDER BY sg.created_at ASC
	`)
	if err != nil {
		return nil, &triageerr.StoreError{Op: "ListOverdueReplies", Err: err}
	}
	defer rows.Close()

	var out []OverdueReply
	now := time.Now().UTC()
	for rows.Next() {
		var r OverdueReply
		var createdAt time.Time
		if err := rows.Scan(&r.EmailID, &r.Subject, &r.SenderEmail, &createdAt); err != nil {
			return nil, &triageerr.StoreError{Op: "ListOverdueReplies", Err: err}
		}
		hours := now.Sub(createdAt).Hours()
		if hours < float64(warningHours) {
			continue
		}
		r.HoursWaiting = hours
		if hours >= float64(criticalHours) {
			r.Level = "critical"
		} else {
			r.Level = "warning"
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSuggestion(row rowScanner) (*Suggestion, error) {
	sg := &Suggestion{}
	var status string
	var approvedFolder, approvedPriority, approvedActionType sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&sg.ID, &sg.EmailID, &sg.CreatedAt, &sg.SuggestedFolder, &sg.SuggestedPriority,
		&sg.SuggestedActionType, &sg.Confidence, &sg.Reasoning, &status,
		&approvedFolder, &approvedPriority, &approvedActionType, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	sg.Status = SuggestionStatus(status)
	sg.ApprovedFolder = StringPtr(approvedFolder)
	sg.ApprovedPriority = StringPtr(approvedPriority)
	sg.ApprovedActionType = StringPtr(approvedActionType)
	if resolvedAt.Valid {
		v := resolvedAt.Time
		sg.ResolvedAt = &v
	}
	return sg, nil
}
