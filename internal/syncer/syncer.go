package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/logger"
	"github.com/lkschedule/schedule-sync/internal/reconcile"
	"github.com/lkschedule/schedule-sync/internal/scraper"
	"github.com/lkschedule/schedule-sync/internal/storage"
)

// Screenshotter is implemented by page sources that can capture the page they last
// loaded.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Reconciler applies the collected lessons to the calendar. *reconcile.Engine
// implements it.
type Reconciler interface {
	Sync(ctx context.Context, fresh []*event.Event, window reconcile.Window, deleteMissing bool) (*reconcile.Report, error)
}

// Options describes one run.
type Options struct {
	Start         time.Time
	Weeks         int
	Location      *time.Location
	DeleteMissing bool
}

// WeekResult is the outcome of one week.
type WeekResult struct {
	Week
	Events         int               `json:"events"`
	Anomalies      []scraper.Anomaly `json:"anomalies,omitempty"`
	PagePath       string            `json:"page_path,omitempty"`
	ScreenshotPath string            `json:"screenshot_path,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// Failed reports whether the week produced no usable result.
func (w WeekResult) Failed() bool {
	return w.Error != ""
}

// Report is the outcome of a run.
type Report struct {
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	Window            reconcile.Window  `json:"window"`
	Weeks             []WeekResult      `json:"weeks"`
	Events            int               `json:"events"`
	Duplicates        int               `json:"duplicates"`
	FailedWeeks       int               `json:"failed_weeks"`
	DeletesSuppressed bool              `json:"deletes_suppressed,omitempty"`
	Skipped           bool              `json:"skipped,omitempty"`
	Reconcile         *reconcile.Report `json:"reconcile,omitempty"`
	Metrics           logger.Snapshot   `json:"metrics"`
	Error             string            `json:"error,omitempty"`
}

// Syncer drives the weekly collection and the reconciliation hand-off.
type Syncer struct {
	source     scraper.PageSource
	extractor  *scraper.Extractor
	store      *storage.Storage
	reconciler Reconciler
}

// New creates a Syncer. store may be nil to skip artifacts and the run report;
// reconciler may be nil when only Collect is used.
func New(source scraper.PageSource, extractor *scraper.Extractor, store *storage.Storage, reconciler Reconciler) *Syncer {
	return &Syncer{
		source:     source,
		extractor:  extractor,
		store:      store,
		reconciler: reconciler,
	}
}

// Collect fetches and extracts the given weeks one at a time. A failing week is
// recorded and skipped; only cancellation of ctx stops the collection early.
// Events sharing a source ID across weeks are reduced to the first one.
func (s *Syncer) Collect(ctx context.Context, weeks []Week) ([]*event.Event, []WeekResult, error) {
	all := make([]*event.Event, 0)
	results := make([]WeekResult, 0, len(weeks))

	for _, w := range weeks {
		if err := ctx.Err(); err != nil {
			return nil, results, err
		}

		res, events := s.collectWeek(ctx, w)
		results = append(results, res)
		all = append(all, events...)
	}

	unique, duplicates := event.PartitionBySource(all)
	for id, dups := range duplicates {
		logger.Warn("dropping duplicate source ID", logger.Fields{
			"source_id": id,
			"count":     len(dups),
			"title":     dups[0].Title,
		})
	}
	return unique, results, nil
}

func (s *Syncer) collectWeek(ctx context.Context, w Week) (WeekResult, []*event.Event) {
	res := WeekResult{Week: w}
	fields := logger.Fields{
		"from": w.From.Format("2006-01-02"),
		"to":   w.To.Format("2006-01-02"),
	}

	start := time.Now()
	page, err := s.source.FetchWeek(ctx, w.From, w.To)
	logger.RecordTiming("week.fetch", time.Since(start))
	if err != nil {
		logger.Error("failed to fetch week", fields, err)
		logger.IncrCounter("weeks.failed")
		res.Error = err.Error()
		return res, nil
	}

	if s.store != nil {
		path, err := s.store.SavePage(w.From, w.To, page)
		if err != nil {
			logger.Warn("could not save page artifact", logger.Fields{"error": err.Error()})
		}
		res.PagePath = path
	}

	parsed, err := s.extractor.ParseString(page)
	if err != nil {
		logger.Error("failed to parse week", fields, err)
		logger.IncrCounter("weeks.failed")
		res.Error = err.Error()
		if scraper.IsParseError(err) {
			res.ScreenshotPath = s.screenshot(ctx, w)
		}
		return res, nil
	}

	res.Events = len(parsed.Events)
	res.Anomalies = parsed.Anomalies
	logger.IncrCounter("weeks.fetched")
	logger.AddCounter("events.parsed", int64(len(parsed.Events)))
	logger.AddCounter("anomalies", int64(len(parsed.Anomalies)))

	fields["events"] = len(parsed.Events)
	logger.Info("parsed week", fields)
	return res, parsed.Events
}

// screenshot captures the failing page when the source supports it. Failures are only
// logged.
func (s *Syncer) screenshot(ctx context.Context, w Week) string {
	shooter, ok := s.source.(Screenshotter)
	if !ok || s.store == nil {
		return ""
	}
	png, err := shooter.Screenshot(ctx)
	if err != nil {
		logger.Warn("unable to capture screenshot", logger.Fields{"error": err.Error()})
		return ""
	}
	path, err := s.store.SaveScreenshot(w.From, w.To, png)
	if err != nil {
		logger.Warn("unable to save screenshot", logger.Fields{"error": err.Error()})
		return ""
	}
	logger.Info("saved screenshot", logger.Fields{"path": path})
	return path
}

// Run collects opts.Weeks weeks from opts.Start and reconciles the result. Deletions
// are suppressed when any week failed, and reconciliation is skipped entirely when
// nothing was parsed. The report is returned even when err is not nil.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Report, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	report := &Report{
		StartedAt: time.Now(),
		Window:    TimeWindow(opts.Start, opts.Weeks, loc),
	}
	err := s.run(ctx, opts, loc, report)

	report.FinishedAt = time.Now()
	report.Metrics = logger.GetMetricsSnapshot()
	if err != nil {
		report.Error = err.Error()
	}
	if s.store != nil {
		if serr := s.store.SaveReport(report); serr != nil {
			logger.Warn("could not save run report", logger.Fields{"error": serr.Error()})
		}
	}
	return report, err
}

func (s *Syncer) run(ctx context.Context, opts Options, loc *time.Location, report *Report) error {
	weeks := Weeks(opts.Start, opts.Weeks, loc)

	events, results, err := s.Collect(ctx, weeks)
	report.Weeks = results
	if err != nil {
		return err
	}

	report.FailedWeeks = lo.CountBy(results, func(r WeekResult) bool { return r.Failed() })
	report.Events = len(events)
	report.Duplicates = lo.SumBy(results, func(r WeekResult) int { return r.Events }) - len(events)

	if len(weeks) > 0 && report.FailedWeeks == len(weeks) {
		return fmt.Errorf("all %d weeks failed", len(weeks))
	}
	if len(events) == 0 {
		logger.Warn("no events parsed; nothing to sync", nil)
		report.Skipped = true
		return nil
	}
	if s.reconciler == nil {
		return nil
	}

	deleteMissing := opts.DeleteMissing
	if deleteMissing && report.FailedWeeks > 0 {
		logger.Warn("some weeks failed, not deleting missing events", logger.Fields{
			"failed_weeks": report.FailedWeeks,
		})
		deleteMissing = false
		report.DeletesSuppressed = true
	}

	rec, err := s.reconciler.Sync(ctx, events, report.Window, deleteMissing)
	report.Reconcile = rec
	if err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}
	return nil
}
