package gcal

import (
	"google.golang.org/api/calendar/v3"

	"github.com/lkschedule/schedule-sync/internal/event"
)

// ToAPI converts the remote payload into the API representation.
func ToAPI(r *event.RemoteEvent) *calendar.Event {
	ev := &calendar.Event{
		Id:          r.ID,
		Summary:     r.Summary,
		Location:    r.Location,
		Description: r.Description,
		Start:       &calendar.EventDateTime{DateTime: r.Start.DateTime, TimeZone: r.Start.TimeZone},
		End:         &calendar.EventDateTime{DateTime: r.End.DateTime, TimeZone: r.End.TimeZone},
	}
	if r.ExtendedProperties != nil && len(r.ExtendedProperties.Private) > 0 {
		private := make(map[string]string, len(r.ExtendedProperties.Private))
		for k, v := range r.ExtendedProperties.Private {
			private[k] = v
		}
		ev.ExtendedProperties = &calendar.EventExtendedProperties{Private: private}
	}
	return ev
}

// FromAPI converts an API event into the remote payload. All-day events keep an empty
// DateTime.
func FromAPI(ev *calendar.Event) *event.RemoteEvent {
	r := &event.RemoteEvent{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Location:    ev.Location,
		Description: ev.Description,
	}
	if ev.Start != nil {
		r.Start = event.EventDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone}
	}
	if ev.End != nil {
		r.End = event.EventDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone}
	}
	if ev.ExtendedProperties != nil && ev.ExtendedProperties.Private != nil {
		private := make(map[string]string, len(ev.ExtendedProperties.Private))
		for k, v := range ev.ExtendedProperties.Private {
			private[k] = v
		}
		r.ExtendedProperties = &event.ExtendedProperties{Private: private}
	}
	return r
}
