package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lkschedule/schedule-sync/internal/scraper"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE",
		Short: "Extract lessons from a saved schedule page",
		Long: `Extract lessons from a schedule page saved earlier, for example one of the
artifacts/pages files written by sync. Nothing is fetched and the calendar is not
touched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening page: %w", err)
			}
			defer f.Close()

			res, err := scraper.NewExtractor(cfg.Selectors, cfg.Location()).Parse(f)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			sortEvents(res.Events)
			result := &EventsResult{
				Source:     args[0],
				EventCount: len(res.Events),
				Events:     res.Events,
				Anomalies:  res.Anomalies,
			}
			return WriteEvents(cmd.OutOrStdout(), result, format, flagVerbose)
		},
	}
}
