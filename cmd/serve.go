package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/strata-ai/strata/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the maintenance daemon",
	Long: `Runs background lifecycle sweeps for every configured collection on
their independent schedules until interrupted. A lock file guarantees a
single daemon per machine; a second invocation exits immediately.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := acquireDaemonLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	shutdownTracing, err := observability.Setup(ctx, a.cfg.Otel, a.logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(cmd.Context()) }()

	a.logger.Info("maintenance daemon starting",
		"collections", a.cfg.Collections,
		"cleanup_interval", a.cfg.Maintenance.CleanupInterval,
		"consolidation_interval", a.cfg.Maintenance.ConsolidationInterval,
	)

	a.newMaintainer().Run(ctx)

	a.logger.Info("maintenance daemon stopped")
	return nil
}

// acquireDaemonLock takes the single-daemon lock, failing fast when another
// strata daemon already holds it.
func acquireDaemonLock() (*flock.Flock, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	dir := filepath.Join(home, ".strata")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "strata.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring daemon lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another strata daemon is already running (lock: %s)", lock.Path())
	}
	return lock, nil
}
