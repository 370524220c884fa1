package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/logger"
)

// Options controls how actions are applied.
type Options struct {
	DryRun bool
	// Concurrency is the number of mutations in flight during APPLY. Values below 2
	// apply actions one at a time in order.
	Concurrency int
}

// Window is the half-open interval [Min, Max) that is reconciled.
type Window struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// ActionSummary describes one action in a Report.
type ActionSummary struct {
	Kind     ActionKind `json:"kind"`
	SourceID string     `json:"source_id"`
	EventID  string     `json:"event_id,omitempty"`
	Title    string     `json:"title,omitempty"`
	Start    time.Time  `json:"start,omitzero"`
	Applied  bool       `json:"applied"`
}

// Report is the outcome of one reconciliation run.
type Report struct {
	CalendarID string          `json:"calendar_id"`
	TimeMin    time.Time       `json:"time_min"`
	TimeMax    time.Time       `json:"time_max"`
	DryRun     bool            `json:"dry_run"`
	Fresh      int             `json:"fresh"`
	Existing   int             `json:"existing"`
	Created    int             `json:"created"`
	Updated    int             `json:"updated"`
	Deleted    int             `json:"deleted"`
	Applied    int             `json:"applied"`
	Actions    []ActionSummary `json:"actions"`
}

// Total returns the number of planned actions.
func (r *Report) Total() int {
	return len(r.Actions)
}

// Engine reconciles one calendar.
type Engine struct {
	client     CalendarClient
	calendarID string
	opts       Options
}

// NewEngine creates an Engine for calendarID.
func NewEngine(client CalendarClient, calendarID string, opts Options) *Engine {
	return &Engine{
		client:     client,
		calendarID: calendarID,
		opts:       opts,
	}
}

// FetchExisting lists every event in the window, following page tokens until
// exhausted, and keeps the managed ones. Duplicate source IDs keep the last listed
// event.
func (e *Engine) FetchExisting(ctx context.Context, window Window) (*Existing, error) {
	start := time.Now()
	defer func() { logger.RecordTiming("reconcile.fetch", time.Since(start)) }()

	existing := NewExisting()
	skipped := 0
	pageToken := ""
	for {
		items, next, err := e.client.ListEvents(ctx, e.calendarID, window.Min, window.Max, pageToken)
		if err != nil {
			return nil, &RemoteError{Op: "list", Err: err}
		}

		for _, item := range items {
			if !item.IsManaged() {
				skipped++
				continue
			}
			if existing.Add(item) {
				logger.Warn("duplicate managed event for source ID, keeping the last one", logger.Fields{
					"source_id": item.SourceID(),
					"event_id":  item.ID,
				})
			}
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	logger.Debug("fetched existing events", logger.Fields{
		"managed":   existing.Len(),
		"unmanaged": skipped,
	})
	return existing, nil
}

// Sync runs FETCH_EXISTING, DIFF, APPLY and REPORT for fresh over window. On a remote
// failure the partial report is returned together with the error; actions applied
// before the failure stay applied.
func (e *Engine) Sync(ctx context.Context, fresh []*event.Event, window Window, deleteMissing bool) (*Report, error) {
	existing, err := e.FetchExisting(ctx, window)
	if err != nil {
		return nil, err
	}

	actions := Diff(fresh, existing, deleteMissing)

	report := &Report{
		CalendarID: e.calendarID,
		TimeMin:    window.Min,
		TimeMax:    window.Max,
		DryRun:     e.opts.DryRun,
		Fresh:      len(fresh),
		Existing:   existing.Len(),
		Created:    CountKind(actions, ActionCreate),
		Updated:    CountKind(actions, ActionUpdate),
		Deleted:    CountKind(actions, ActionDelete),
	}

	logger.Info("reconciliation planned", logger.Fields{
		"calendar_id": e.calendarID,
		"create":      report.Created,
		"update":      report.Updated,
		"delete":      report.Deleted,
		"dry_run":     e.opts.DryRun,
	})

	report.Actions, err = e.Apply(ctx, actions)
	for _, s := range report.Actions {
		if s.Applied {
			report.Applied++
		}
	}
	return report, err
}

// Apply executes actions against the calendar, or only logs them in dry-run mode. It
// stops at the first failure and returns a *RemoteError.
func (e *Engine) Apply(ctx context.Context, actions []Action) ([]ActionSummary, error) {
	summaries := make([]ActionSummary, len(actions))
	for i, a := range actions {
		summaries[i] = summarize(a)
	}

	if e.opts.DryRun {
		for _, s := range summaries {
			logger.Info("dry-run action", logger.Fields{
				"kind":      string(s.Kind),
				"source_id": s.SourceID,
				"event_id":  s.EventID,
				"title":     s.Title,
			})
		}
		return summaries, nil
	}

	start := time.Now()
	defer func() { logger.RecordTiming("reconcile.apply", time.Since(start)) }()

	if e.opts.Concurrency < 2 {
		for i, a := range actions {
			id, err := e.apply(ctx, a)
			if err != nil {
				return summaries, err
			}
			summaries[i].EventID = id
			summaries[i].Applied = true
		}
		return summaries, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, a := range actions {
		g.Go(func() error {
			id, err := e.apply(gctx, a)
			if err != nil {
				return err
			}
			mu.Lock()
			summaries[i].EventID = id
			summaries[i].Applied = true
			mu.Unlock()
			return nil
		})
	}
	return summaries, g.Wait()
}

// apply performs one mutation and returns the remote event ID it touched.
func (e *Engine) apply(ctx context.Context, a Action) (string, error) {
	switch a.Kind {
	case ActionCreate:
		created, err := e.client.InsertEvent(ctx, e.calendarID, a.Body)
		if err != nil {
			return "", &RemoteError{Op: "insert", SourceID: a.SourceID, Err: err}
		}
		logger.IncrCounter("actions.created")
		return created.ID, nil

	case ActionUpdate:
		if _, err := e.client.UpdateEvent(ctx, e.calendarID, a.Existing.ID, a.Body); err != nil {
			return "", &RemoteError{Op: "update", SourceID: a.SourceID, EventID: a.Existing.ID, Err: err}
		}
		logger.IncrCounter("actions.updated")
		return a.Existing.ID, nil

	case ActionDelete:
		if err := e.client.DeleteEvent(ctx, e.calendarID, a.Existing.ID); err != nil {
			return "", &RemoteError{Op: "delete", SourceID: a.SourceID, EventID: a.Existing.ID, Err: err}
		}
		logger.IncrCounter("actions.deleted")
		return a.Existing.ID, nil
	}
	return "", fmt.Errorf("unknown action kind %q", a.Kind)
}

func summarize(a Action) ActionSummary {
	s := ActionSummary{Kind: a.Kind, SourceID: a.SourceID}
	if a.Existing != nil {
		s.EventID = a.Existing.ID
	}
	switch {
	case a.Event != nil:
		s.Title = a.Event.Title
		s.Start = a.Event.Start
	case a.Existing != nil:
		s.Title = a.Existing.Summary
		if t, err := time.Parse(time.RFC3339, a.Existing.Start.DateTime); err == nil {
			s.Start = t
		}
	}
	return s
}
