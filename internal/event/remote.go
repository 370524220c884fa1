package event

import (
	"fmt"
	"time"
)

// Private extended property keys and the marker identifying events owned by this system.
const (
	ManagedByKey = "managed_by"
	SourceIDKey  = "source_id"
	ManagedBy    = "msal_schedule_sync"
)

// EventDateTime is a timed instant in the remote payload (RFC 3339 with offset).
type EventDateTime struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// ExtendedProperties holds the private metadata attached to a remote event.
type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
}

// RemoteEvent is the calendar service's view of an event. ID is empty on payloads that
// have not been created yet.
type RemoteEvent struct {
	ID                 string              `json:"id,omitempty"`
	Summary            string              `json:"summary"`
	Location           string              `json:"location,omitempty"`
	Description        string              `json:"description,omitempty"`
	Start              EventDateTime       `json:"start"`
	End                EventDateTime       `json:"end"`
	ExtendedProperties *ExtendedProperties `json:"extendedProperties,omitempty"`
}

// private returns the private metadata value for key and whether it is present.
func (r *RemoteEvent) private(key string) (string, bool) {
	if r == nil || r.ExtendedProperties == nil || r.ExtendedProperties.Private == nil {
		return "", false
	}
	v, ok := r.ExtendedProperties.Private[key]
	return v, ok
}

// IsManaged reports whether the event carries this system's marker and a source ID.
func (r *RemoteEvent) IsManaged() bool {
	marker, ok := r.private(ManagedByKey)
	if !ok || marker != ManagedBy {
		return false
	}
	_, ok = r.private(SourceIDKey)
	return ok
}

// SourceID returns the source_id tag, or "" when absent.
func (r *RemoteEvent) SourceID() string {
	v, _ := r.private(SourceIDKey)
	return v
}

// ToEvent reconstructs a comparable lesson occurrence from the remote fields.
func (r *RemoteEvent) ToEvent() (*Event, error) {
	start, err := time.Parse(time.RFC3339, r.Start.DateTime)
	if err != nil {
		return nil, fmt.Errorf("parsing start of %s: %w", r.ID, err)
	}
	end, err := time.Parse(time.RFC3339, r.End.DateTime)
	if err != nil {
		return nil, fmt.Errorf("parsing end of %s: %w", r.ID, err)
	}
	return &Event{
		Title:       r.Summary,
		Start:       start,
		End:         end,
		Location:    r.Location,
		Description: r.Description,
		SourceID:    r.SourceID(),
	}, nil
}
