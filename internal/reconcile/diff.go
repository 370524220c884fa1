package reconcile

import (
	"github.com/samber/lo"

	"github.com/lkschedule/schedule-sync/internal/event"
	"github.com/lkschedule/schedule-sync/internal/logger"
)

// ActionKind is the remote mutation an Action asks for.
type ActionKind string

const (
	ActionCreate ActionKind = "CREATE"
	ActionUpdate ActionKind = "UPDATE"
	ActionDelete ActionKind = "DELETE"
)

// Action is one planned remote mutation.
type Action struct {
	Kind     ActionKind
	SourceID string
	Event    *event.Event       // fresh occurrence; nil for DELETE
	Body     *event.RemoteEvent // payload for CREATE and UPDATE
	Existing *event.RemoteEvent // current remote event for UPDATE and DELETE
}

// Diff compares fresh occurrences with the existing managed snapshot.
//
// Fresh events produce CREATE or UPDATE actions in their input order; when
// deleteMissing is set, existing events absent from fresh follow as DELETE actions in
// listing order, then the remote duplicates superseded by a later event with the same
// source ID. Only the first fresh event per source ID is considered.
func Diff(fresh []*event.Event, existing *Existing, deleteMissing bool) []Action {
	if existing == nil {
		existing = NewExisting()
	}
	unique, _ := event.PartitionBySource(fresh)

	actions := make([]Action, 0)
	for _, evt := range unique {
		remote, ok := existing.Get(evt.SourceID)
		if !ok {
			actions = append(actions, Action{
				Kind:     ActionCreate,
				SourceID: evt.SourceID,
				Event:    evt,
				Body:     evt.ToRemoteBody(),
			})
			continue
		}

		current, err := remote.ToEvent()
		if err != nil {
			logger.Warn("remote event has unreadable times, rewriting it", logger.Fields{
				"event_id":  remote.ID,
				"source_id": evt.SourceID,
				"error":     err.Error(),
			})
		}
		if err != nil || !event.Equal(evt, current) {
			actions = append(actions, Action{
				Kind:     ActionUpdate,
				SourceID: evt.SourceID,
				Event:    evt,
				Body:     evt.ToRemoteBody(),
				Existing: remote,
			})
		}
	}

	if !deleteMissing {
		return actions
	}

	freshIDs := lo.Associate(unique, func(evt *event.Event) (string, struct{}) {
		return evt.SourceID, struct{}{}
	})
	for _, id := range existing.SourceIDs() {
		if _, ok := freshIDs[id]; ok {
			continue
		}
		remote, _ := existing.Get(id)
		actions = append(actions, Action{
			Kind:     ActionDelete,
			SourceID: id,
			Existing: remote,
		})
	}
	for _, dup := range existing.Superseded() {
		actions = append(actions, Action{
			Kind:     ActionDelete,
			SourceID: dup.SourceID(),
			Existing: dup,
		})
	}
	return actions
}

// CountKind returns how many actions are of kind.
func CountKind(actions []Action, kind ActionKind) int {
	return lo.CountBy(actions, func(a Action) bool {
		return a.Kind == kind
	})
}
