package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/lkschedule/schedule-sync/internal/config"
	"github.com/lkschedule/schedule-sync/internal/logger"
)

func newDaemonCmd() *cobra.Command {
	var (
		flags  syncFlags
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run sync on the configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applySyncFlags(cmd, cfg, &flags)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDaemon(ctx, cfg, runNow, func(ctx context.Context) {
				syncJob(ctx, cfg, flags)
			})
		},
	}

	addWindowFlags(cmd, &flags)
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show planned calendar changes without applying them")
	cmd.Flags().BoolVar(&flags.deleteMissing, "delete-missing", false, "Delete managed events that are no longer in the schedule")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately before waiting for the schedule")
	return cmd
}

// runDaemon calls job on cfg.Schedule until ctx is cancelled. Overlapping runs are
// skipped.
func runDaemon(ctx context.Context, cfg *config.Config, runNow bool, job func(context.Context)) error {
	loc := cfg.Location()
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)

	id, err := c.AddFunc(cfg.Schedule, func() { job(ctx) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	if runNow {
		job(ctx)
	}

	c.Start()
	logger.Info("daemon started", logger.Fields{
		"schedule": cfg.Schedule,
		"next_run": c.Entry(id).Next.Format("2006-01-02 15:04"),
	})

	<-ctx.Done()
	logger.Info("shutting down, waiting for running sync", nil)
	<-c.Stop().Done()
	return nil
}

func syncJob(ctx context.Context, cfg *config.Config, flags syncFlags) {
	if ctx.Err() != nil {
		return
	}
	report, err := runSync(ctx, cfg, flags)
	if err != nil {
		logger.Error("scheduled sync failed", nil, err)
		return
	}

	fields := logger.Fields{"events": report.Events, "failed_weeks": report.FailedWeeks}
	if rec := report.Reconcile; rec != nil {
		fields["created"] = rec.Created
		fields["updated"] = rec.Updated
		fields["deleted"] = rec.Deleted
	}
	logger.Info("scheduled sync finished", fields)
}

// cronLogger routes scheduler messages to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, kvFields(keysAndValues), err)
}

func kvFields(kv []interface{}) logger.Fields {
	fields := logger.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
