// Package triage contains the per-cycle orchestrator (Engine) and the
// waiting-for obligation tracker (spec §4.10, §4.12).
package triage

import (
	"context"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/sentcache"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

// WaitingForCounts is the aggregate result of one check_all pass (spec
// §4.12 step 4).
type WaitingForCounts struct {
	Resolved  int
	Nudged    int
	Escalated int
	Unchanged int
	Errors    int
}

// WaitingForTracker resolves waiting-for obligations against the sent
// items cache and classifies the rest by age.
type WaitingForTracker struct {
	store *store.Store
	cache *sentcache.Cache
}

// NewWaitingForTracker returns a WaitingForTracker.
func NewWaitingForTracker(s *store.Store, cache *sentcache.Cache) *WaitingForTracker {
	return &WaitingForTracker{store: s, cache: cache}
}

// CheckAll scans every active waiting-for row, refreshing the sent
// cache first if it is stale, and either resolves, nudges, escalates,
// or leaves each row unchanged (spec §4.12).
func (t *WaitingForTracker) CheckAll(ctx context.Context, cfg *config.AgingConfig) (WaitingForCounts, error) {
	var counts WaitingForCounts

	if _, err := t.cache.RefreshIfStale(ctx); err != nil {
		counts.Errors++
	}

	items, err := t.store.ListActiveWaitingFor(ctx)
	if err != nil {
		return counts, err
	}

	for _, wf := range items {
		if lastSent, replied := t.cache.GetLastReplyTime(wf.ConversationID); replied && !lastSent.Before(wf.WaitingSince) {
			transitioned, err := t.store.ResolveWaitingFor(ctx, wf.ID, store.WaitingForReceived)
			if err != nil {
				counts.Errors++
				continue
			}
			if transitioned {
				counts.Resolved++
			}
			continue
		}

		hoursWaiting := time.Since(wf.WaitingSince).Hours()
		switch {
		case hoursWaiting >= float64(cfg.WaitingForEscalateHours):
			counts.Escalated++
		case hoursWaiting >= float64(cfg.WaitingForNudgeHours):
			counts.Nudged++
		default:
			counts.Unchanged++
		}
	}

	return counts, nil
}
