package store

import (
	"context"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// AppendActionLog writes one append-only audit row for an agent action
// (e.g. an auto-approved batch move).
func (s *Store) AppendActionLog(ctx context.Context, a *ActionLog) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO action_log (action_type, email_id, details_json, triggered_by)
		VALUES (?, ?, ?, ?)
	`, a.ActionType, a.EmailID, a.DetailsJSON, a.TriggeredBy)
	if err != nil {
		return &triageerr.StoreError{Op: "AppendActionLog", Err: err}
	}
	return nil
}

// ProcessingStats aggregates 24h activity for the digest generator.
type ProcessingStats struct {
	EmailsProcessed int
	AutoApproved    int
	Failed          int
}

// GetProcessingStats aggregates action_log and emails activity since a
// point in time (original_source/engine/digest.py get_processing_stats).
func (s *Store) GetProcessingStats(ctx context.Context, since time.Time) (*ProcessingStats, error) {
	stats := &ProcessingStats{}
	if err := s.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM emails WHERE processed_at >= ?
	`, since).Scan(&stats.EmailsProcessed); err != nil {
		return nil, &triageerr.StoreError{Op: "GetProcessingStats", Err: err}
	}
	if err := s.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM action_log WHERE triggered_by = 'auto_approved' AND timestamp >= ?
	`, since).Scan(&stats.AutoApproved); err != nil {
		return nil, &triageerr.StoreError{Op: "GetProcessingStats", Err: err}
	}
	if err := s.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM emails WHERE classification_status = 'failed'
	`).Scan(&stats.Failed); err != nil {
		return nil, &triageerr.StoreError{Op: "GetProcessingStats", Err: err}
	}
	return stats, nil
}

// CountPendingSuggestions returns the total pending count, for the
// digest's pending section.
func (s *Store) CountPendingSuggestions(ctx context.Context) (int, error) {
	var n int
	err := s.QueryRowContext(ctx, `SELECT COUNT(*) FROM suggestions WHERE status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, &triageerr.StoreError{Op: "CountPendingSuggestions", Err: err}
	}
	return n, nil
}
