package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GrantWise/OutlookOrganiser-sub001/internal/scheduler"
)

const shutdownGrace = 10 * time.Second

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background triage scheduler and a health endpoint",
	Long: `serve runs the immutable-id migration once, then starts the
periodic triage cycle (spec §4.10) on the interval configured in
triage.interval_seconds. The review web UI is an out-of-scope external
collaborator (spec §1); --host/--port here expose only a /healthz probe
against the shared SQLite store so that UI (or any operator tooling)
can confirm the writer is alive.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "health endpoint bind host")
	serveCmd.Flags().IntVar(&servePort, "port", 8642, "health endpoint bind port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	mgr, err := loadManager(configPath)
	if err != nil {
		return err
	}
	a, err := newApp(mgr, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.migrator.RunIfNeeded(ctx); err != nil {
		logger.Error("immutable id migration failed", "error", err)
	}

	sched := scheduler.New(mgr.Current().Triage.IntervalDuration(), func(runCtx context.Context) {
		result := a.engine.RunCycle(runCtx)
		logger.Info("triage cycle complete",
			"cycle_id", result.CycleID,
			"messages_fetched", result.MessagesFetched,
			"classified", result.Classified,
			"auto_rule_matches", result.AutoRuleMatches,
			"inherited_matches", result.InheritedMatches,
			"auto_applied", result.AutoApplied.Approved,
			"expired", result.Expired,
		)
	}, logger)
	sched.Start(ctx)
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.store.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "store unhealthy: %v\n", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	addr := fmt.Sprintf("%s:%d", serveHost, servePort)
	srv := &http.Server{Addr: addr, Handler: mux}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	logger.Info("serving", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health endpoint: %w", err)
		}
	}
	return nil
}
