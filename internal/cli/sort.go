package cli

import (
	"sort"
	"strings"

	"github.com/lkschedule/schedule-sync/internal/event"
)

// sortEvents orders events by start time, then by title.
func sortEvents(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareByStart(events[i], events[j])
	})
}

// compareByStart returns true if event i should come before event j
func compareByStart(i, j *event.Event) bool {
	if !i.Start.Equal(j.Start) {
		return i.Start.Before(j.Start)
	}
	if i.Title != j.Title {
		return strings.ToLower(i.Title) < strings.ToLower(j.Title)
	}
	return i.SourceID < j.SourceID
}
