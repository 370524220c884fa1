package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/lkschedule/schedule-sync/internal/calendar"
	"github.com/lkschedule/schedule-sync/internal/config"
	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/syncer"
)

const defaultExportPath = "schedule.ics"

func newExportCmd() *cobra.Command {
	var (
		flags  syncFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the schedule to an .ics file without touching the calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applySyncFlags(cmd, cfg, &flags)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events, err := collect(ctx, cfg, flags)
			if err != nil {
				return err
			}

			if err := writeICSFile(output, events); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d events to %s\n", len(events), output)
			return nil
		},
	}

	addWindowFlags(cmd, &flags)
	cmd.Flags().StringVarP(&output, "output", "o", defaultExportPath, "Path of the .ics file to write")
	return cmd
}

// collect logs in and scrapes the configured weeks without reconciling.
func collect(ctx context.Context, cfg *config.Config, flags syncFlags) ([]*event.Event, error) {
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
	source, release, err := openSource(ctx, cfg, store, flags.headful)
	if err != nil {
		return nil, err
	}
	defer release()

	s := syncer.New(source, scraper.NewExtractor(cfg.Selectors, loc), store, nil)
	weeks := syncer.Weeks(start, flags.weeks, loc)
	events, results, err := s.Collect(ctx, weeks)
	if err != nil {
		return nil, err
	}
	if failed := lo.CountBy(results, func(r syncer.WeekResult) bool { return r.Failed() }); failed == len(weeks) {
		return nil, fmt.Errorf("all %d weeks failed", failed)
	}

	sortEvents(events)
	return events, nil
}

func writeICSFile(path string, events []*event.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := calendar.WriteICS(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
