// Package migrate implements the one-shot immutable-id migration
// (spec §4.14): mail providers sometimes rewrite a message's mutable
// id (e.g. on a move), so the store's primary key is swapped for the
// provider's stable id the first time the migrator runs.
package migrate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

// IDMigrator runs the immutable-id backfill exactly once, gated by the
// agent_state flag StateKeyImmutableIDsMigrated.
type IDMigrator struct {
	store      *store.Store
	mailClient mail.Client
	logger     *slog.Logger
}

// New returns an IDMigrator.
func New(s *store.Store, mailClient mail.Client, logger *slog.Logger) *IDMigrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &IDMigrator{store: s, mailClient: mailClient, logger: logger}
}

// RunIfNeeded is a no-op if the migration flag is already set.
// Otherwise it walks every stored email id, asks the mail client for
// its current immutable id, and rewrites the store's primary key on a
// mismatch. A 404 (message deleted since) is swallowed; any other
// per-email error is logged and the walk continues, so one bad lookup
// cannot block the rest of the migration.
func (m *IDMigrator) RunIfNeeded(ctx context.Context) error {
	_, done, err := m.store.GetState(ctx, store.StateKeyImmutableIDsMigrated)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	ids, err := m.store.ListEmailIDs(ctx)
	if err != nil {
		return err
	}

	for _, oldID := range ids {
		newID, err := m.mailClient.GetMessageImmutableID(ctx, oldID)
		if err != nil {
			if errors.Is(err, mail.ErrNotFound) {
				continue
			}
			m.logger.Error("immutable id lookup failed", "email_id", oldID, "error", err)
			continue
		}
		if newID == oldID {
			continue
		}
		if err := m.store.UpdateEmailID(ctx, oldID, newID); err != nil {
			m.logger.Error("immutable id update failed", "email_id", oldID, "error", err)
			continue
		}
	}

	return m.store.SetState(ctx, store.StateKeyImmutableIDsMigrated, "true")
}
