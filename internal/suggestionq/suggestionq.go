// Package suggestionq implements the auto-apply and expiry state
// machine over pending suggestions (spec §4.11), on top of the CAS
// primitives already provided by internal/store.
package suggestionq

import (
	"context"
	"log/slog"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
)

// NeverAutoApprove is the priority that auto_apply must never touch
// (spec §4.1 invariant, §8).
const NeverAutoApprove = "P1 - Urgent Important"

// ApplyResult reports the outcome of one auto_apply pass.
type ApplyResult struct {
	Approved int
	Failed   int
}

// Queue drives auto-apply and expiry over the store's suggestion CAS
// operations.
type Queue struct {
	store      *store.Store
	mailClient mail.Client
	logger     *slog.Logger
}

// New returns a Queue, logging with logger (or slog.Default if nil).
func New(s *store.Store, mailClient mail.Client, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{store: s, mailClient: mailClient, logger: logger}
}

// AutoApply resolves folder ids and batch-moves every suggestion
// meeting the confidence/age/priority gate, CASing each reported
// success to auto_approved and logging an action_log row. A batch-wide
// move failure leaves every affected suggestion pending (spec §4.11
// step 5); per-move failures leave only that suggestion pending.
func (q *Queue) AutoApply(ctx context.Context, cfg *config.SuggestionQueueConfig) (ApplyResult, error) {
	candidates, err := q.store.GetAutoApprovableSuggestions(ctx, store.AutoApprovableFilter{
		MinConfidence:    cfg.AutoApproveConfidence,
		MinAgeHours:      float64(cfg.AutoApproveDelayHours),
		ExcludedPriority: NeverAutoApprove,
	})
	if err != nil {
		return ApplyResult{}, err
	}
	if len(candidates) == 0 {
		return ApplyResult{}, nil
	}

	moves := make([]mail.MoveRequest, 0, len(candidates))
	folderIDCache := map[string]string{}
	byEmailID := map[string]*store.Suggestion{}
	for i := range candidates {
		sg := &candidates[i]
		byEmailID[sg.EmailID] = sg

		folderID, ok := folderIDCache[sg.SuggestedFolder]
		if !ok {
			resolved, err := q.mailClient.GetFolderID(ctx, sg.SuggestedFolder)
			if err != nil {
				q.logger.Warn("suggestionq: folder resolution failed, leaving suggestion pending",
					"email_id", sg.EmailID, "folder", sg.SuggestedFolder, "error", err)
				continue
			}
			folderIDCache[sg.SuggestedFolder] = resolved
			folderID = resolved
		}
		moves = append(moves, mail.MoveRequest{MessageID: sg.EmailID, FolderID: folderID})
	}

	if len(moves) == 0 {
		return ApplyResult{}, nil
	}

	results, err := q.mailClient.BatchMove(ctx, moves)
	if err != nil {
		// Batch-wide failure: every candidate stays pending.
		return ApplyResult{Failed: len(candidates)}, nil
	}

	var out ApplyResult
	for _, r := range results {
		sg, known := byEmailID[r.ID]
		if !known {
			continue
		}
		if !r.Success {
			out.Failed++
			continue
		}
		transitioned, err := q.store.MarkSuggestionAutoApproved(ctx, sg.ID)
		if err != nil {
			return out, err
		}
		if !transitioned {
			continue
		}
		out.Approved++
		_ = q.store.AppendActionLog(ctx, &store.ActionLog{
			Timestamp:   time.Now().UTC(),
			ActionType:  "move",
			EmailID:     sg.EmailID,
			TriggeredBy: "auto_approved",
		})
	}
	return out, nil
}

// Expire bulk-transitions pending suggestions older than
// expire_after_days to expired, returning the count transitioned.
func (q *Queue) Expire(ctx context.Context, cfg *config.SuggestionQueueConfig) (int64, error) {
	maxAge := time.Duration(cfg.ExpireAfterDays) * 24 * time.Hour
	return q.store.ExpireOldSuggestions(ctx, maxAge)
}
