package reconcile

import (
	"testing"

	"github.com/lkschedule/schedule-sync/internal/event"
)

func existingOf(events ...*event.RemoteEvent) *Existing {
	e := NewExisting()
	for _, r := range events {
		e.Add(r)
	}
	return e
}

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func TestDiff(t *testing.T) {
	a := lesson("a", "Физика", 1, 10)
	b := lesson("b", "Логика", 2, 10)
	c := lesson("c", "Римское право", 3, 12)

	bRenamed := *b
	bRenamed.Title = "Формальная логика"

	tests := []struct {
		name          string
		fresh         []*event.Event
		existing      *Existing
		deleteMissing bool
		want          []ActionKind
	}{
		{
			name:     "everything new",
			fresh:    []*event.Event{a, b},
			existing: existingOf(),
			want:     []ActionKind{ActionCreate, ActionCreate},
		},
		{
			name:     "unchanged",
			fresh:    []*event.Event{a, b},
			existing: existingOf(remoteFor("1", a), remoteFor("2", b)),
			want:     []ActionKind{},
		},
		{
			name:     "changed title",
			fresh:    []*event.Event{a, &bRenamed},
			existing: existingOf(remoteFor("1", a), remoteFor("2", b)),
			want:     []ActionKind{ActionUpdate},
		},
		{
			name:     "missing kept without deleteMissing",
			fresh:    []*event.Event{a},
			existing: existingOf(remoteFor("1", a), remoteFor("2", b)),
			want:     []ActionKind{},
		},
		{
			name:          "missing deleted after creates and updates",
			fresh:         []*event.Event{c, &bRenamed},
			existing:      existingOf(remoteFor("1", a), remoteFor("2", b)),
			deleteMissing: true,
			want:          []ActionKind{ActionCreate, ActionUpdate, ActionDelete},
		},
		{
			name:          "empty fresh deletes all",
			fresh:         nil,
			existing:      existingOf(remoteFor("1", a), remoteFor("2", b)),
			deleteMissing: true,
			want:          []ActionKind{ActionDelete, ActionDelete},
		},
		{
			name:     "nil existing",
			fresh:    []*event.Event{a},
			existing: nil,
			want:     []ActionKind{ActionCreate},
		},
		{
			name:     "repeated fresh source ID",
			fresh:    []*event.Event{a, a},
			existing: existingOf(),
			want:     []ActionKind{ActionCreate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := kinds(Diff(tt.fresh, tt.existing, tt.deleteMissing))
			if len(got) != len(tt.want) {
				t.Fatalf("Diff() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Diff() = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestDiff_LocationChangeCarriesPayload(t *testing.T) {
	old := lesson("abc123", "Физика", 1, 10)
	fresh := *old
	fresh.Location = "Ауд. 310"

	actions := Diff([]*event.Event{&fresh}, existingOf(remoteFor("remote-1", old)), true)

	if len(actions) != 1 {
		t.Fatalf("expected exactly one action, got %d", len(actions))
	}
	a := actions[0]
	if a.Kind != ActionUpdate {
		t.Errorf("Kind = %s, want UPDATE", a.Kind)
	}
	if a.Body.Location != "Ауд. 310" {
		t.Errorf("payload location = %q, want Ауд. 310", a.Body.Location)
	}
	if a.Existing.ID != "remote-1" {
		t.Errorf("update targets %q, want remote-1", a.Existing.ID)
	}
	if a.Body.SourceID() != "abc123" {
		t.Errorf("payload source_id = %q", a.Body.SourceID())
	}
}

func TestDiff_EmptyAndAbsentFieldsMatch(t *testing.T) {
	evt := lesson("a", "Физика", 1, 10)
	evt.Location = ""

	remote := remoteFor("1", evt)
	if remote.Location != "" || remote.Description != "" {
		t.Fatalf("empty fields should be absent from the payload: %+v", remote)
	}

	if actions := Diff([]*event.Event{evt}, existingOf(remote), false); len(actions) != 0 {
		t.Errorf("expected no actions, got %v", kinds(actions))
	}
}

func TestDiff_SameInstantDifferentZone(t *testing.T) {
	evt := lesson("a", "Физика", 1, 10)
	remote := remoteFor("1", evt)
	remote.Start.DateTime = evt.Start.UTC().Format("2006-01-02T15:04:05Z07:00")
	remote.End.DateTime = evt.End.UTC().Format("2006-01-02T15:04:05Z07:00")

	if actions := Diff([]*event.Event{evt}, existingOf(remote), false); len(actions) != 0 {
		t.Errorf("expected no actions, got %v", kinds(actions))
	}
}

func TestDiff_UnreadableRemoteTimesUpdate(t *testing.T) {
	evt := lesson("a", "Физика", 1, 10)
	remote := remoteFor("1", evt)
	remote.Start.DateTime = ""

	actions := Diff([]*event.Event{evt}, existingOf(remote), false)
	if len(actions) != 1 || actions[0].Kind != ActionUpdate {
		t.Errorf("expected a single UPDATE, got %v", kinds(actions))
	}
}

func TestCountKind(t *testing.T) {
	actions := []Action{{Kind: ActionCreate}, {Kind: ActionDelete}, {Kind: ActionCreate}}
	if got := CountKind(actions, ActionCreate); got != 2 {
		t.Errorf("CountKind(CREATE) = %d, want 2", got)
	}
	if got := CountKind(actions, ActionUpdate); got != 0 {
		t.Errorf("CountKind(UPDATE) = %d, want 0", got)
	}
}

func TestDiff_DeletesSupersededDuplicates(t *testing.T) {
	a := lesson("a", "Физика", 1, 10)
	existing := existingOf(remoteFor("first", a), remoteFor("second", a))

	tests := []struct {
		name          string
		deleteMissing bool
		want          []string
	}{
		{"kept without delete-missing", false, nil},
		{"earlier copy deleted", true, []string{"first"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := Diff([]*event.Event{a}, existing, tt.deleteMissing)

			var deleted []string
			for _, act := range actions {
				if act.Kind != ActionDelete {
					t.Errorf("unexpected %s action for %s", act.Kind, act.SourceID)
					continue
				}
				if act.SourceID != "a" {
					t.Errorf("SourceID = %q, want a", act.SourceID)
				}
				deleted = append(deleted, act.Existing.ID)
			}
			if len(deleted) != len(tt.want) || (len(tt.want) > 0 && deleted[0] != tt.want[0]) {
				t.Errorf("deleted = %v, want %v", deleted, tt.want)
			}
		})
	}
}
