package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/syncer"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "2006-01-02 15:04"
)

// EventsResult is the output of an offline extraction.
type EventsResult struct {
	Source     string            `json:"source"`
	EventCount int               `json:"event_count"`
	Events     []*event.Event    `json:"events"`
	Anomalies  []scraper.Anomaly `json:"anomalies,omitempty"`
}

// WriteEvents writes extracted events in the specified format
func WriteEvents(w io.Writer, result *EventsResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeEventsText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteReport writes a sync report in the specified format
func WriteReport(w io.Writer, report *syncer.Report, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatText:
		return writeReportText(w, report, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeEventsText(w io.Writer, result *EventsResult, verbose bool) error {
	if result.EventCount == 0 {
		fmt.Fprintln(w, "No events found.")
	}

	for _, evt := range result.Events {
		fmt.Fprintf(w, "%s-%s  %s\n", evt.Start.Format(clockLayout), evt.End.Format("15:04"), evt.Title)
		if verbose {
			fmt.Fprintf(w, "     ID: %s\n", evt.SourceID)
			if evt.Location != "" {
				fmt.Fprintf(w, "     Location: %s\n", evt.Location)
			}
			if evt.Description != "" {
				fmt.Fprintf(w, "     %s\n", evt.Description)
			}
		}
	}

	if len(result.Anomalies) > 0 {
		fmt.Fprintf(w, "\nAnomalies (%d):\n", len(result.Anomalies))
		for _, a := range result.Anomalies {
			fmt.Fprintf(w, "  %s: %s\n", a.Kind, a.Message)
		}
	}

	if result.EventCount > 0 {
		fmt.Fprintf(w, "\nTotal: %d events\n", result.EventCount)
	}
	return nil
}

func writeReportText(w io.Writer, report *syncer.Report, verbose bool) error {
	if !report.Window.Min.IsZero() {
		// Window.Max is exclusive.
		last := report.Window.Max.AddDate(0, 0, -1)
		fmt.Fprintf(w, "Window: %s - %s\n", report.Window.Min.Format(dateLayout), last.Format(dateLayout))
	}

	for _, wk := range report.Weeks {
		span := fmt.Sprintf("%s - %s", wk.From.Format(dateLayout), wk.To.Format(dateLayout))
		if wk.Failed() {
			fmt.Fprintf(w, "  %s: FAILED (%s)\n", span, wk.Error)
			if wk.ScreenshotPath != "" {
				fmt.Fprintf(w, "       Screenshot: %s\n", wk.ScreenshotPath)
			}
			continue
		}
		fmt.Fprintf(w, "  %s: %d events", span, wk.Events)
		if len(wk.Anomalies) > 0 {
			fmt.Fprintf(w, ", %d anomalies", len(wk.Anomalies))
		}
		fmt.Fprintln(w)
		if verbose {
			for _, a := range wk.Anomalies {
				fmt.Fprintf(w, "       %s: %s\n", a.Kind, a.Message)
			}
		}
	}

	fmt.Fprintf(w, "\nEvents: %d", report.Events)
	if report.Duplicates > 0 {
		fmt.Fprintf(w, " (%d duplicates dropped)", report.Duplicates)
	}
	fmt.Fprintln(w)

	if report.DeletesSuppressed {
		fmt.Fprintf(w, "Deletes suppressed: %d weeks failed\n", report.FailedWeeks)
	}
	if report.Skipped {
		fmt.Fprintln(w, "Nothing to sync.")
	}

	if rec := report.Reconcile; rec != nil {
		mode := ""
		if rec.DryRun {
			mode = " (dry run)"
		}
		fmt.Fprintf(w, "Calendar %s%s: %d created, %d updated, %d deleted\n",
			rec.CalendarID, mode, rec.Created, rec.Updated, rec.Deleted)
		for _, a := range rec.Actions {
			line := fmt.Sprintf("  %-6s %s", a.Kind, a.SourceID)
			if a.Title != "" {
				line = fmt.Sprintf("  %-6s %s  %s", a.Kind, a.Start.Format(clockLayout), a.Title)
			}
			if !rec.DryRun && !a.Applied {
				line += "  (not applied)"
			}
			fmt.Fprintln(w, line)
		}
	}

	if report.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", report.Error)
	}
	return nil
}
