package calendar

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/lkschedule/schedule-sync/internal/event"
)

// ProductID identifies exported calendars.
const ProductID = "-//schedule-sync//lessons//RU"

// uidDomain is appended to source IDs to form VEVENT UIDs.
const uidDomain = "schedule-sync"

// Build returns an iCalendar document with one VEVENT per lesson. The UID is derived
// from the source ID so repeated exports of the same lesson replace each other in
// calendar clients.
func Build(events []*event.Event, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)

	for _, evt := range events {
		ve := cal.AddEvent(fmt.Sprintf("%s@%s", evt.SourceID, uidDomain))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(evt.Start)
		ve.SetEndAt(evt.End)
		ve.SetSummary(evt.Title)
		if evt.Location != "" {
			ve.SetLocation(evt.Location)
		}
		if evt.Description != "" {
			ve.SetDescription(evt.Description)
		}
	}
	return cal
}

// WriteICS serializes events as an .ics document to w.
func WriteICS(w io.Writer, events []*event.Event) error {
	cal := Build(events, time.Now())
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("writing calendar: %w", err)
	}
	return nil
}
