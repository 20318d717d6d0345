package store

import (
	"context"
	"database/sql"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// CreateTaskSync inserts a new active task-sync row. Callers enforce at
// most one active row per email via the partial unique index on
// (email_id) WHERE status = 'active'.
func (s *Store) CreateTaskSync(ctx context.Context, t *TaskSync) (int64, error) {
	if t.Status == "" {
		t.Status = TaskSyncActive
	}
	res, err := s.ExecContext(ctx, `
		INSERT INTO task_sync (email_id, external_task_id, status) VALUES (?, ?, ?)
	`, t.EmailID, t.ExternalTaskID, string(t.Status))
	if err != nil {
		return 0, &triageerr.StoreError{Op: "CreateTaskSync", Err: err}
	}
	return res.LastInsertId()
}

// GetActiveTaskSyncForEmail returns the active task-sync row for an
// email, or (nil, nil) if none exists.
func (s *Store) GetActiveTaskSyncForEmail(ctx context.Context, emailID string) (*TaskSync, error) {
	row := s.QueryRowContext(ctx, `
		SELECT id, email_id, external_task_id, status, created_at, updated_at
		FROM task_sync WHERE email_id = ? AND status = 'active'
	`, emailID)
	t := &TaskSync{}
	var status string
	err := row.Scan(&t.ID, &t.EmailID, &t.ExternalTaskID, &status, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &triageerr.StoreError{Op: "GetActiveTaskSyncForEmail", Err: err}
	}
	t.Status = TaskSyncStatus(status)
	return t, nil
}

// UpdateTaskSyncStatus transitions a task-sync row's status.
func (s *Store) UpdateTaskSyncStatus(ctx context.Context, id int64, status TaskSyncStatus) error {
	_, err := s.ExecContext(ctx, `
		UPDATE task_sync SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, string(status), id)
	if err != nil {
		return &triageerr.StoreError{Op: "UpdateTaskSyncStatus", Err: err}
	}
	return nil
}
