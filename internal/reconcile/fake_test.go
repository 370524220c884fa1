package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/lkschedule/schedule-sync/internal/event"
)

// fakeClient is an in-memory calendar that pages its listing.
type fakeClient struct {
	mu       sync.Mutex
	events   []*event.RemoteEvent
	pageSize int
	nextID   int

	listCalls int
	mutations []string

	listErr   error
	insertErr error
	failAfter int // number of successful inserts before insertErr applies
	inserts   int
}

func newFakeClient(events ...*event.RemoteEvent) *fakeClient {
	return &fakeClient{events: events, pageSize: 2}
}

func (f *fakeClient) ListEvents(_ context.Context, _ string, _, _ time.Time, pageToken string) ([]*event.RemoteEvent, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls++
	if f.listErr != nil {
		return nil, "", f.listErr
	}

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("bad page token %q", pageToken)
		}
		start = n
	}
	end := start + f.pageSize
	if end >= len(f.events) {
		return append([]*event.RemoteEvent(nil), f.events[start:]...), "", nil
	}
	return append([]*event.RemoteEvent(nil), f.events[start:end]...), strconv.Itoa(end), nil
}

func (f *fakeClient) InsertEvent(_ context.Context, _ string, body *event.RemoteEvent) (*event.RemoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil && f.inserts >= f.failAfter {
		return nil, f.insertErr
	}
	f.inserts++
	f.nextID++
	created := *body
	created.ID = fmt.Sprintf("evt-%d", f.nextID)
	f.events = append(f.events, &created)
	f.mutations = append(f.mutations, "insert "+body.SourceID())
	return &created, nil
}

func (f *fakeClient) UpdateEvent(_ context.Context, _ string, eventID string, body *event.RemoteEvent) (*event.RemoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, e := range f.events {
		if e.ID == eventID {
			updated := *body
			updated.ID = eventID
			f.events[i] = &updated
			f.mutations = append(f.mutations, "update "+eventID)
			return &updated, nil
		}
	}
	return nil, fmt.Errorf("event %s not found", eventID)
}

func (f *fakeClient) DeleteEvent(_ context.Context, _ string, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, e := range f.events {
		if e.ID == eventID {
			f.events = append(f.events[:i], f.events[i+1:]...)
			f.mutations = append(f.mutations, "delete "+eventID)
			return nil
		}
	}
	return fmt.Errorf("event %s not found", eventID)
}

var msk = time.FixedZone("MSK", 3*60*60)

func lesson(sourceID, title string, day, hour int) *event.Event {
	start := time.Date(2025, 9, day, hour, 0, 0, 0, msk)
	return &event.Event{
		Title:    title,
		Start:    start,
		End:      start.Add(90 * time.Minute),
		Location: "Ауд. 204",
		SourceID: sourceID,
	}
}

// remoteFor renders evt the way it would be stored after creation.
func remoteFor(id string, evt *event.Event) *event.RemoteEvent {
	r := evt.ToRemoteBody()
	r.ID = id
	return r
}

func unmanaged(id, summary string) *event.RemoteEvent {
	return &event.RemoteEvent{
		ID:      id,
		Summary: summary,
		Start:   event.EventDateTime{DateTime: "2025-09-01T10:00:00+03:00"},
		End:     event.EventDateTime{DateTime: "2025-09-01T11:00:00+03:00"},
	}
}

var testWindow = Window{
	Min: time.Date(2025, 9, 1, 0, 0, 0, 0, msk),
	Max: time.Date(2025, 9, 8, 0, 0, 0, 0, msk),
}
