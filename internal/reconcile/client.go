package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/lkschedule/schedule-sync/internal/event"
)

// CalendarClient is the remote calendar collaborator. Retries, if any, belong to the
// implementation; every error it returns is fatal for the run.
type CalendarClient interface {
	// ListEvents returns one page of events in [timeMin, timeMax) and the token of the
	// next page, or "" when exhausted.
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time, pageToken string) ([]*event.RemoteEvent, string, error)
	InsertEvent(ctx context.Context, calendarID string, body *event.RemoteEvent) (*event.RemoteEvent, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, body *event.RemoteEvent) (*event.RemoteEvent, error)
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// RemoteError is a listing or mutation failure reported by the calendar client.
type RemoteError struct {
	Op       string // list, insert, update or delete
	SourceID string
	EventID  string
	Err      error
}

func (e *RemoteError) Error() string {
	switch {
	case e.EventID != "":
		return fmt.Sprintf("calendar %s of event %s failed: %v", e.Op, e.EventID, e.Err)
	case e.SourceID != "":
		return fmt.Sprintf("calendar %s of source %s failed: %v", e.Op, e.SourceID, e.Err)
	default:
		return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
