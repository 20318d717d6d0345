// Package cli implements the triage-agent command-line front end (spec
// §6): validate-config, serve, bootstrap, dry-run, and triage, plus the
// read-only introspection commands from SPEC_FULL.md §7. Grounded on
// the teacher's internal/cli (cobra root + subcommand-per-file layout,
// persistent --config/-c flag, version command) with every subcommand
// rewritten against this repo's internal/store, internal/config,
// internal/triage, internal/scheduler, internal/digest, and
// internal/migrate rather than the teacher's internal/database.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/autorules"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/classifier"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/config"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/digest"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/learner"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/llm"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/logging"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/mail/gmail"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/migrate"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/sentcache"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/snippet"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/store"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/suggestionq"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/threadctx"
	"github.com/GrantWise/OutlookOrganiser-sub001/internal/triage"
)

// anthropicBaseURL is the default LLMClient endpoint (spec §6); no
// config field overrides it today, matching the teacher's pattern of
// hardcoding its Ollama default host alongside a configurable model.
const anthropicBaseURL = "https://api.anthropic.com"

// sentItemsLookback bounds how far back the sent-items cache looks for
// reply detection; the cache itself re-fetches this window from
// mail.Client.GetSentItems whenever it goes stale (sentcache.RefreshStaleAfter).
const sentItemsLookback = 24 * time.Hour

// app bundles every long-lived collaborator a command needs. Not every
// command uses every field; commands pull what they need and leave the
// rest nil-safe to construct.
type app struct {
	cfgMgr     *config.Manager
	store      *store.Store
	mailClient mail.Client
	llmClient  llm.Client
	classifier *classifier.Classifier
	engine     *triage.Engine
	digest     *digest.Generator
	migrator   *migrate.IDMigrator
	logger     *slog.Logger
}

// newApp wires every collaborator from a loaded config. Callers must
// call close() when done.
func newApp(cfgMgr *config.Manager, logger *slog.Logger) (*app, error) {
	cfg := cfgMgr.Current()

	s, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	mailClient := gmail.New(cfg.Auth.CredentialsPath, cfg.Auth.TokenPath)

	apiKey := os.Getenv(cfg.Models.APIKeyEnv)
	llmClient := llm.New(anthropicBaseURL, apiKey)

	cls := classifier.New(llmClient, s, cfg.Models.ClassificationModel, cfg.Triage.ClassificationAttemptsMax)
	preferences, _, err := s.GetState(context.Background(), store.StateKeyClassificationPreferences)
	if err != nil {
		logger.Warn("failed to load classification preferences on startup", "error", err)
	}
	cls.RefreshSystemPrompt(cfg, preferences)

	sentCache := sentcache.New(mailClient, sentItemsLookback)
	wfTracker := triage.NewWaitingForTracker(s, sentCache)

	digestGen := digest.New(s, llmClient, cfg.Models.DigestModel)
	migrator := migrate.New(s, mailClient, logger)

	eng := triage.NewEngine(triage.Deps{
		Store:       s,
		ConfigMgr:   cfgMgr,
		MailClient:  mailClient,
		Classifier:  cls,
		AutoRules:   autorules.New(),
		CtxBuilder:  threadctx.NewBuilder(s, cfg.Snippet.ThreadContextMaxLength),
		Cleaner:     snippet.New(cfg.Snippet.ClassificationMaxLength),
		SuggestionQ: suggestionq.New(s, mailClient, logger),
		Learner:     learner.New(s, llmClient, cfg.Models.ClassificationModel),
		WaitingFor:  wfTracker,
		Digest:      digestGen,
		Logger:      logger,
	})

	return &app{
		cfgMgr:     cfgMgr,
		store:      s,
		mailClient: mailClient,
		llmClient:  llmClient,
		classifier: cls,
		engine:     eng,
		digest:     digestGen,
		migrator:   migrator,
		logger:     logger,
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// openStoreOnly opens just the store, for the read-only introspection
// commands (suggestions list, waiting-for list, digest show) that have
// no need to authenticate a mail client or LLM client.
func openStoreOnly(mgr *config.Manager) (*store.Store, error) {
	return store.Open(mgr.Current().Database.Path)
}

// loadManager loads the config at path (empty uses the default
// resolution order: --config flag, then ASSISTANT_CONFIG_PATH, then
// config/config.yaml) into a hot-reloadable Manager.
func loadManager(path string) (*config.Manager, error) {
	return config.NewManager(path)
}
