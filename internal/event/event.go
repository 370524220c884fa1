package event

import (
	"time"
)

// UntitledLesson is used when no subject text can be recovered from a lesson card.
const UntitledLesson = "Без названия"

// Event is one lesson occurrence extracted from the schedule. Location and Description
// are optional; an empty string means absent.
type Event struct {
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	SourceID    string    `json:"source_id"`
}

// ToRemoteBody maps the event onto the remote creation/update payload.
func (e *Event) ToRemoteBody() *RemoteEvent {
	body := &RemoteEvent{
		Summary: e.Title,
		Start:   EventDateTime{DateTime: e.Start.Format(time.RFC3339)},
		End:     EventDateTime{DateTime: e.End.Format(time.RFC3339)},
		ExtendedProperties: &ExtendedProperties{
			Private: map[string]string{
				ManagedByKey: ManagedBy,
				SourceIDKey:  e.SourceID,
			},
		},
	}
	if e.Location != "" {
		body.Location = e.Location
	}
	if e.Description != "" {
		body.Description = e.Description
	}
	return body
}

// Equal reports whether a and b describe the same lesson as far as the calendar is
// concerned: title, start, end, location and description. Instants are compared with
// time.Time.Equal so differing zone representations of one instant match.
func Equal(a, b *Event) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Title == b.Title &&
		a.Start.Equal(b.Start) &&
		a.End.Equal(b.End) &&
		a.Location == b.Location &&
		a.Description == b.Description
}

// PartitionBySource splits events into the first occurrence per source ID (in input
// order) and the later events sharing an already seen ID.
func PartitionBySource(events []*Event) (unique []*Event, duplicates map[string][]*Event) {
	unique = make([]*Event, 0, len(events))
	duplicates = make(map[string][]*Event)
	seen := make(map[string]bool)
	for _, evt := range events {
		if seen[evt.SourceID] {
			duplicates[evt.SourceID] = append(duplicates[evt.SourceID], evt)
			continue
		}
		seen[evt.SourceID] = true
		unique = append(unique, evt)
	}
	return unique, duplicates
}
