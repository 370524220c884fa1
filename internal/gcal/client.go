package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/lo"
	"github.com/sethvargo/go-retry"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/logger"
)

const (
	// MaxResults is the page size requested from the events listing.
	MaxResults = 2500

	defaultBackoff = time.Second
)

// Options tunes a Client.
type Options struct {
	// ServerSideFilter restricts listings to events carrying the managed marker.
	ServerSideFilter bool
	// MaxRetries bounds retries of rate-limited and 5xx responses.
	MaxRetries int
	// Backoff is the base of the exponential backoff between retries.
	Backoff time.Duration
}

// Client implements reconcile.CalendarClient on top of the Google Calendar API.
type Client struct {
	svc  *calendar.Service
	opts Options
}

// New creates a Client. clientOpts carry authentication, usually
// option.WithTokenSource.
func New(ctx context.Context, opts Options, clientOpts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Client{svc: svc, opts: opts}, nil
}

// ListEvents returns one page of single (expanded) events in [timeMin, timeMax).
func (c *Client) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) ([]*event.RemoteEvent, string, error) {
	call := c.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(false).
		MaxResults(MaxResults)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	if c.opts.ServerSideFilter {
		call = call.PrivateExtendedProperty(event.ManagedByKey + "=" + event.ManagedBy)
	}

	var resp *calendar.Events
	err := c.do(ctx, "list", func(ctx context.Context) error {
		var err error
		resp, err = call.Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, "", err
	}

	items := lo.Map(resp.Items, func(ev *calendar.Event, _ int) *event.RemoteEvent {
		return FromAPI(ev)
	})
	return items, resp.NextPageToken, nil
}

// InsertEvent creates an event.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, body *event.RemoteEvent) (*event.RemoteEvent, error) {
	var created *calendar.Event
	err := c.do(ctx, "insert", func(ctx context.Context) error {
		var err error
		created, err = c.svc.Events.Insert(calendarID, ToAPI(body)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromAPI(created), nil
}

// UpdateEvent replaces an event.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, body *event.RemoteEvent) (*event.RemoteEvent, error) {
	var updated *calendar.Event
	err := c.do(ctx, "update", func(ctx context.Context) error {
		var err error
		updated, err = c.svc.Events.Update(calendarID, eventID, ToAPI(body)).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	return FromAPI(updated), nil
}

// DeleteEvent deletes an event. An event that is already gone counts as deleted.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := c.do(ctx, "delete", func(ctx context.Context) error {
		return c.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	})
	if isGone(err) {
		logger.Debug("event already deleted", logger.Fields{"event_id": eventID})
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(c.opts.MaxRetries), retry.NewExponential(c.opts.Backoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if Retryable(err) {
			logger.Warn("calendar request failed, retrying", logger.Fields{
				"op":      op,
				"attempt": attempt,
				"error":   err.Error(),
			})
			logger.IncrCounter("gcal.retries")
			return retry.RetryableError(err)
		}
		return err
	})
}

// Retryable reports whether err is a rate limit or server-side failure worth retrying.
func Retryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch {
	case gerr.Code == http.StatusTooManyRequests, gerr.Code >= 500:
		return true
	case gerr.Code == http.StatusForbidden:
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusGone || gerr.Code == http.StatusNotFound
}
