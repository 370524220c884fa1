package gcal

import (
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/lkschedule/schedule-sync/internal/event"
)

func TestToAPIFromAPI(t *testing.T) {
	evt := &event.Event{
		Title:       "Гражданское право",
		Start:       time.Date(2025, 9, 1, 9, 0, 0, 0, msk),
		End:         time.Date(2025, 9, 1, 10, 30, 0, 0, msk),
		Location:    "Ауд. 301",
		Description: "Тип: Лекция",
		SourceID:    "abc",
	}

	api := ToAPI(evt.ToRemoteBody())
	if api.Summary != evt.Title || api.Location != evt.Location || api.Description != evt.Description {
		t.Errorf("ToAPI() = %+v", api)
	}
	if api.Start.DateTime != "2025-09-01T09:00:00+03:00" {
		t.Errorf("Start.DateTime = %q", api.Start.DateTime)
	}
	if api.ExtendedProperties.Private[event.SourceIDKey] != "abc" {
		t.Errorf("private = %v", api.ExtendedProperties.Private)
	}

	api.Id = "remote-1"
	back, err := FromAPI(api).ToEvent()
	if err != nil {
		t.Fatalf("ToEvent() error: %v", err)
	}
	if !event.Equal(evt, back) {
		t.Errorf("round trip changed the event: %+v vs %+v", evt, back)
	}
}

func TestFromAPI_Sparse(t *testing.T) {
	r := FromAPI(&calendar.Event{
		Id:    "allday",
		Start: &calendar.EventDateTime{Date: "2025-09-01"},
	})

	if r.ID != "allday" || r.Start.DateTime != "" || r.End.DateTime != "" {
		t.Errorf("FromAPI() = %+v", r)
	}
	if r.IsManaged() {
		t.Error("event without properties should not be managed")
	}
}
