package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triageerr"
)

// Well-known agent_state keys (spec.md §3).
const (
	StateKeyDeltaToken              = "delta_token"
	StateKeyLastProcessedTimestamp  = "last_processed_timestamp"
	StateKeyLastDigestRun           = "last_digest_run"
	StateKeyLastPreferenceUpdate    = "last_preference_update"
	StateKeyClassificationPreferences = "classification_preferences"
	StateKeyCategoriesBootstrapped  = "categories_bootstrapped"
	StateKeyImmutableIDsMigrated    = "immutable_ids_migrated"
)

// GetState returns the value for key, or ("", false) if unset.
func (s *Store) GetState(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.QueryRowContext(ctx, `SELECT value FROM agent_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &triageerr.StoreError{Op: "GetState", Err: err}
	}
	return value, true, nil
}

// SetState upserts a key/value pair, bumping updated_at.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return &triageerr.StoreError{Op: "SetState", Err: err}
	}
	return nil
}

// GetStateUpdatedAt returns when a key was last written, used by
// cooldown gates (preference learning, digest generation).
func (s *Store) GetStateUpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var updatedAt time.Time
	err := s.QueryRowContext(ctx, `SELECT updated_at FROM agent_state WHERE key = ?`, key).Scan(&updatedAt)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &triageerr.StoreError{Op: "GetStateUpdatedAt", Err: err}
	}
	return updatedAt, true, nil
}
