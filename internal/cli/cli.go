package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lkschedule/schedule-sync/internal/config"
	"github.com/lkschedule/schedule-sync/internal/logger"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

const defaultConfigPath = "config.yaml"

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule-sync",
		Short: "Synchronize the MSAL university schedule into Google Calendar",
		Long: `A CLI tool that reads the weekly schedule from the MSAL student portal and
keeps a Google Calendar in step with it. Only events created by this tool are ever
updated or deleted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath, "Path to the YAML config (created on first run)")
	cmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(
		newSyncCmd(),
		newParseCmd(),
		newExportCmd(),
		newDaemonCmd(),
	)
	return cmd
}

// outputFormat validates the --format flag.
func outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(flagFormat)))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	return format, nil
}

// loadConfig reads the config file and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using INFO\n", err)
		level = logger.LevelInfo
	}
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))
	return cfg, nil
}

// parseStart interprets a YYYY-MM-DD start date in loc. An empty value means today.
func parseStart(value string, loc *time.Location, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return now.In(loc), nil
	}
	start, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --start %q (expected YYYY-MM-DD): %w", value, err)
	}
	return start, nil
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
