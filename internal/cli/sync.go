package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lkschedule/schedule-sync/internal/config"
	"github.com/lkschedule/schedule-sync/internal/logger"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/syncer"
)

// syncFlags are the options of one sync run.
type syncFlags struct {
	start         string
	weeks         int
	headful       bool
	dryRun        bool
	deleteMissing bool
}

func newSyncCmd() *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the schedule into Google Calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applySyncFlags(cmd, cfg, &flags)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, runErr := runSync(ctx, cfg, flags)
			if report != nil {
				if err := WriteReport(cmd.OutOrStdout(), report, format, flagVerbose); err != nil {
					return fmt.Errorf("writing output: %w", err)
				}
			}
			return runErr
		},
	}

	addWindowFlags(cmd, &flags)
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Show planned calendar changes without applying them")
	cmd.Flags().BoolVar(&flags.deleteMissing, "delete-missing", false, "Delete managed events that are no longer in the schedule")
	return cmd
}

func addWindowFlags(cmd *cobra.Command, flags *syncFlags) {
	cmd.Flags().StringVar(&flags.start, "start", "", "First day to sync, YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&flags.weeks, "weeks", config.DefaultWeeks, "Number of weeks to sync")
	cmd.Flags().BoolVar(&flags.headful, "headful", false, "Show the browser window")
}

// applySyncFlags fills flags that were not given on the command line from cfg.
func applySyncFlags(cmd *cobra.Command, cfg *config.Config, flags *syncFlags) {
	if !cmd.Flags().Changed("weeks") {
		flags.weeks = cfg.Weeks
	}
	if f := cmd.Flags().Lookup("delete-missing"); f != nil && !f.Changed {
		flags.deleteMissing = cfg.Sync.DeleteMissing
	}
}

// runSync performs one full run: login, collection and reconciliation. The report is
// returned whenever collection started, also on error.
func runSync(ctx context.Context, cfg *config.Config, flags syncFlags) (*syncer.Report, error) {
	cfg.Weeks = flags.weeks
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc := cfg.Location()
	start, err := parseStart(flags.start, loc, time.Now())
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(ctx, cfg, store, flags.dryRun)
	if err != nil {
		return nil, fmt.Errorf("connecting to Google Calendar: %w", err)
	}

	source, release, err := openSource(ctx, cfg, store, flags.headful)
	if err != nil {
		return nil, err
	}
	defer release()

	logger.ResetMetrics()
	s := syncer.New(source, scraper.NewExtractor(cfg.Selectors, loc), store, engine)
	return s.Run(ctx, syncer.Options{
		Start:         start,
		Weeks:         flags.weeks,
		Location:      loc,
		DeleteMissing: flags.deleteMissing,
	})
}
