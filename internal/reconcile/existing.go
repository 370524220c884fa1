package reconcile

import (
	"github.com/lkschedule/schedule-sync/internal/event"
)

// Existing is the snapshot of managed remote events keyed by source ID. It remembers the
// order in which source IDs were first listed so that deletions are deterministic.
type Existing struct {
	bySource map[string]*event.RemoteEvent
	order    []string
	replaced []*event.RemoteEvent
}

// NewExisting creates an empty snapshot.
func NewExisting() *Existing {
	return &Existing{
		bySource: make(map[string]*event.RemoteEvent),
		order:    make([]string, 0),
	}
}

// Add records a managed event. A later event with an already known source ID replaces
// the earlier one in place and the earlier one is kept as superseded; replaced reports
// whether that happened.
func (e *Existing) Add(r *event.RemoteEvent) (replaced bool) {
	id := r.SourceID()
	if prev, ok := e.bySource[id]; ok {
		e.bySource[id] = r
		e.replaced = append(e.replaced, prev)
		return true
	}
	e.bySource[id] = r
	e.order = append(e.order, id)
	return false
}

// Get returns the managed event for sourceID.
func (e *Existing) Get(sourceID string) (*event.RemoteEvent, bool) {
	r, ok := e.bySource[sourceID]
	return r, ok
}

// Len returns the number of distinct source IDs.
func (e *Existing) Len() int {
	return len(e.order)
}

// SourceIDs returns the source IDs in listing order.
func (e *Existing) SourceIDs() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Superseded returns the events displaced by a later duplicate, in listing order.
func (e *Existing) Superseded() []*event.RemoteEvent {
	out := make([]*event.RemoteEvent, len(e.replaced))
	copy(out, e.replaced)
	return out
}
