package triage

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/autorules"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/classifier"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/learner"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/logging"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/snippet"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/suggestionq"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/threadctx"
)

// InheritedConfidence is the confidence assigned to a suggestion
// created purely from thread-folder inheritance (spec §4.10 step
// "confidence=inherited_confidence"; the spec names the variable but
// leaves its value unspecified, so it is fixed here below the
// classifier's own auto-approve bar so an inherited guess never
// auto-applies without at least one further classified confirmation
// in the thread).
const InheritedConfidence = 0.75

// CycleResult summarizes one run_cycle pass, for logging and the
// dry-run CLI command.
type CycleResult struct {
	CycleID           string
	MessagesFetched   int
	AutoRuleMatches   int
	InheritedMatches  int
	Classified        int
	ClassificationErrs int
	AutoApplied       suggestionq.ApplyResult
	Expired           int64
	WaitingFor        WaitingForCounts
}

// DigestRunner is implemented by internal/digest.Generator; declared
// here to avoid a triage->digest->triage import cycle (digest reads
// from the store and mail client directly, not from Engine).
type DigestRunner interface {
	GenerateAndDeliverIfDue(ctx context.Context, cfg *config.Config) error
}

// Engine is the per-cycle orchestrator (spec §4.10).
type Engine struct {
	store        *store.Store
	configMgr    *config.Manager
	mailClient   mail.Client
	classifier   *classifier.Classifier
	autorules    *autorules.Engine
	ctxBuilder   *threadctx.Builder
	cleaner      *snippet.Cleaner
	suggestionQ  *suggestionq.Queue
	learner      *learner.Learner
	waitingFor   *WaitingForTracker
	digest       DigestRunner
	logger       *slog.Logger
}

// Deps bundles Engine's collaborators.
type Deps struct {
	Store       *store.Store
	ConfigMgr   *config.Manager
	MailClient  mail.Client
	Classifier  *classifier.Classifier
	AutoRules   *autorules.Engine
	CtxBuilder  *threadctx.Builder
	Cleaner     *snippet.Cleaner
	SuggestionQ *suggestionq.Queue
	Learner     *learner.Learner
	WaitingFor  *WaitingForTracker
	Digest      DigestRunner
	Logger      *slog.Logger
}

// NewEngine returns an Engine wired from Deps.
func NewEngine(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store: d.Store, configMgr: d.ConfigMgr, mailClient: d.MailClient,
		classifier: d.Classifier, autorules: d.AutoRules, ctxBuilder: d.CtxBuilder,
		cleaner: d.Cleaner, suggestionQ: d.SuggestionQ, learner: d.Learner,
		waitingFor: d.WaitingFor, digest: d.Digest, logger: logger,
	}
}

// RunCycle executes one full triage pass under a 300 s hard deadline.
// It never returns an error to the scheduler: every internal failure is
// logged and swallowed so a single bad cycle cannot take down the
// periodic driver (spec §4.10).
func (e *Engine) RunCycle(ctx context.Context) CycleResult {
	ctx, cancel := context.WithTimeout(ctx, 300*time.Second)
	defer cancel()
	cycleID := uuid.NewString()
	ctx, logger := logging.WithCorrelationID(ctx, e.logger, cycleID)
	result := CycleResult{CycleID: cycleID}

	if _, err := e.configMgr.ReloadIfChanged(); err != nil {
		logger.Warn("config reload failed, continuing with prior snapshot", "error", err)
	}
	cfg := e.configMgr.Current()

	preferences, _, err := e.store.GetState(ctx, store.StateKeyClassificationPreferences)
	if err != nil {
		logger.Error("failed to load classification preferences", "error", err)
	}
	e.classifier.RefreshSystemPrompt(cfg, preferences)

	cursor, _, err := e.store.GetState(ctx, store.StateKeyDeltaToken)
	if err != nil {
		logger.Error("failed to load delta cursor", "error", err)
	}

	messages, nextCursor, err := e.mailClient.GetDelta(ctx, cursor, cfg.Triage.LookbackDuration())
	if err != nil {
		logger.Error("get_delta failed, skipping this cycle's fetch", "error", err)
		return result
	}
	result.MessagesFetched = len(messages)

	for i := range messages {
		e.processMessage(ctx, logger, cycleID, cfg, &messages[i], &result)
	}

	if err := e.store.SetState(ctx, store.StateKeyDeltaToken, nextCursor); err != nil {
		logger.Error("failed to persist delta cursor", "error", err)
	}

	applied, err := e.suggestionQ.AutoApply(ctx, &cfg.SuggestionQueue)
	if err != nil {
		logger.Error("auto_apply failed", "error", err)
	}
	result.AutoApplied = applied

	expired, err := e.suggestionQ.Expire(ctx, &cfg.SuggestionQueue)
	if err != nil {
		logger.Error("expire failed", "error", err)
	}
	result.Expired = expired

	wfCounts, err := e.waitingFor.CheckAll(ctx, &cfg.Aging)
	if err != nil {
		logger.Error("waiting_for check_all failed", "error", err)
	}
	result.WaitingFor = wfCounts

	if e.learner != nil {
		if _, err := e.learner.Run(ctx, &cfg.Learning); err != nil {
			logger.Error("preference learning run failed", "error", err)
		}
	}

	if e.digest != nil {
		if err := e.digest.GenerateAndDeliverIfDue(ctx, cfg); err != nil {
			logger.Error("digest generation failed", "error", err)
		}
	}

	return result
}

func (e *Engine) processMessage(ctx context.Context, cycleLogger *slog.Logger, cycleID string, cfg *config.Config, m *mail.Message, result *CycleResult) {
	logger := cycleLogger.With("email_id", m.ID)

	existing, err := e.store.GetEmail(ctx, m.ID)
	if err != nil {
		logger.Error("failed to load existing email row", "error", err)
		return
	}

	cleaned := e.cleaner.Clean(m.Body, true)

	email := messageToEmail(m, cleaned.Text)
	if existing != nil {
		email.ClassificationStatus = existing.ClassificationStatus
		email.ClassificationAttempts = existing.ClassificationAttempts
	}
	if err := e.store.SaveEmail(ctx, email); err != nil {
		logger.Error("save_email failed", "error", err)
		return
	}

	if email.ClassificationStatus == store.ClassificationClassified {
		return
	}

	if match := e.autorules.Match(m.From.Email, m.Subject, cfg.AutoRules); match != nil {
		if _, err := e.store.CreateSuggestion(ctx, &store.Suggestion{
			EmailID: m.ID, SuggestedFolder: match.Rule.Action.Folder, SuggestedPriority: match.Rule.Action.Priority,
			SuggestedActionType: match.Rule.Action.ActionType, Confidence: 1.0, Reasoning: match.MatchReason,
			Status: store.SuggestionPending,
		}); err != nil {
			logger.Error("create_suggestion (auto rule) failed", "error", err)
			return
		}
		e.markClassified(ctx, email, logger)
		e.updateSenderProfile(ctx, email, match.Rule.Action.Folder, logger)
		result.AutoRuleMatches++
		return
	}

	tc, err := e.ctxBuilder.Build(ctx, email)
	if err != nil {
		logger.Error("thread context build failed", "error", err)
		return
	}

	if tc.InheritedFolder != "" {
		if _, err := e.store.CreateSuggestion(ctx, &store.Suggestion{
			EmailID: m.ID, SuggestedFolder: tc.InheritedFolder, SuggestedPriority: "P3 - Standard",
			SuggestedActionType: "FYI", Confidence: InheritedConfidence, Reasoning: "inherited from thread",
			Status: store.SuggestionPending,
		}); err != nil {
			logger.Error("create_suggestion (inherited) failed", "error", err)
			return
		}
		e.markClassified(ctx, email, logger)
		e.updateSenderProfile(ctx, email, tc.InheritedFolder, logger)
		result.InheritedMatches++
		return
	}

	r, err := e.classifier.Classify(ctx, cycleID, email, cleaned.Text, tc)
	if err != nil {
		result.ClassificationErrs++
		email.ClassificationAttempts++
		email.ClassificationStatus = store.ClassificationFailed
		if saveErr := e.store.SaveEmail(ctx, email); saveErr != nil {
			logger.Error("failed to persist classification failure", "error", saveErr)
		}
		logger.Error("classification failed", "error", err)
		return
	}

	if _, err := e.store.CreateSuggestion(ctx, &store.Suggestion{
		EmailID: m.ID, SuggestedFolder: r.Folder, SuggestedPriority: r.Priority,
		SuggestedActionType: r.ActionType, Confidence: r.Confidence, Reasoning: r.Reasoning,
		Status: store.SuggestionPending,
	}); err != nil {
		logger.Error("create_suggestion failed", "error", err)
		return
	}
	e.markClassified(ctx, email, logger)
	e.updateSenderProfile(ctx, email, r.Folder, logger)
	result.Classified++
}

func (e *Engine) markClassified(ctx context.Context, email *store.Email, logger *slog.Logger) {
	email.ClassificationStatus = store.ClassificationClassified
	if err := e.store.SaveEmail(ctx, email); err != nil {
		logger.Error("failed to mark email classified", "error", err)
	}
}

// updateSenderProfile upserts the sender's statistics after every
// observed decision (spec §3 SenderProfile: "upserted on every
// observed sender"). Failures are logged, not fatal: the profile is a
// side channel, never load-bearing for the classification decision
// itself.
func (e *Engine) updateSenderProfile(ctx context.Context, email *store.Email, decidedFolder string, logger *slog.Logger) {
	hist, err := e.ctxBuilder.SenderStats(ctx, email.SenderEmail)
	if err != nil {
		logger.Error("sender stats lookup failed", "error", err)
		return
	}
	domain := ""
	if at := strings.LastIndex(email.SenderEmail, "@"); at >= 0 && at < len(email.SenderEmail)-1 {
		domain = strings.ToLower(email.SenderEmail[at+1:])
	}
	p := &store.SenderProfile{
		Email: email.SenderEmail, DisplayName: email.SenderName, Domain: domain,
		Category: store.CategoryUnknown, DefaultFolder: decidedFolder,
		EmailCount: hist.TotalEmails + 1, AutoRuleCandidate: hist.AutoRuleCandidate,
	}
	if existing, err := e.store.GetSenderProfile(ctx, email.SenderEmail); err == nil && existing != nil {
		p.Category = existing.Category
	}
	if err := e.store.UpsertSenderProfile(ctx, p); err != nil {
		logger.Error("upsert sender profile failed", "error", err)
	}
}

func messageToEmail(m *mail.Message, cleanedSnippet string) *store.Email {
	return &store.Email{
		ID: m.ID, ConversationID: m.ConversationID, ConversationIndex: m.ConversationIndex,
		Subject: m.Subject, SenderEmail: m.From.Email, SenderName: m.From.Name,
		ReceivedAt: m.ReceivedAt, Snippet: cleanedSnippet, CurrentFolder: m.CurrentFolder,
		WebLink: m.WebLink, Importance: m.Importance, IsRead: m.IsRead, FlagStatus: m.FlagStatus,
		ClassificationStatus: store.ClassificationPending,
	}
}
