package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lkschedule/schedule-sync/internal/event"
)

func TestFetchExisting_PagesAndFilters(t *testing.T) {
	foreign := unmanaged("foreign", "Другая система")
	foreign.ExtendedProperties = &event.ExtendedProperties{Private: map[string]string{
		event.ManagedByKey: "someone_else",
		event.SourceIDKey:  "s9",
	}}
	noSource := unmanaged("nosource", "Без source_id")
	noSource.ExtendedProperties = &event.ExtendedProperties{Private: map[string]string{
		event.ManagedByKey: event.ManagedBy,
	}}

	client := newFakeClient(
		remoteFor("e1", lesson("s1", "Физика", 1, 10)),
		unmanaged("personal", "Стоматолог"),
		foreign,
		remoteFor("e2", lesson("s2", "Логика", 2, 10)),
		noSource,
	)

	existing, err := NewEngine(client, "primary", Options{}).FetchExisting(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("FetchExisting() error: %v", err)
	}

	if client.listCalls != 3 {
		t.Errorf("expected 3 list calls, got %d", client.listCalls)
	}
	if existing.Len() != 2 {
		t.Fatalf("expected 2 managed events, got %d", existing.Len())
	}
	ids := existing.SourceIDs()
	if ids[0] != "s1" || ids[1] != "s2" {
		t.Errorf("SourceIDs() = %v, want [s1 s2]", ids)
	}
	if _, ok := existing.Get("s9"); ok {
		t.Error("event with a foreign marker should not be managed")
	}
}

func TestFetchExisting_DuplicateSourceKeepsLast(t *testing.T) {
	client := newFakeClient(
		remoteFor("old", lesson("s1", "Физика", 1, 10)),
		remoteFor("e2", lesson("s2", "Логика", 2, 10)),
		remoteFor("new", lesson("s1", "Физика", 1, 10)),
	)

	existing, err := NewEngine(client, "primary", Options{}).FetchExisting(context.Background(), testWindow)
	if err != nil {
		t.Fatalf("FetchExisting() error: %v", err)
	}

	r, ok := existing.Get("s1")
	if !ok || r.ID != "new" {
		t.Errorf("expected last listed event to win, got %+v", r)
	}
	if ids := existing.SourceIDs(); len(ids) != 2 || ids[0] != "s1" {
		t.Errorf("SourceIDs() = %v", ids)
	}
}

func TestSync_RemovesDuplicateRemoteCopies(t *testing.T) {
	a := lesson("s1", "Физика", 1, 10)
	client := newFakeClient(remoteFor("old", a), remoteFor("new", a))
	engine := NewEngine(client, "primary", Options{})

	report, err := engine.Sync(context.Background(), []*event.Event{a}, testWindow, true)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if report.Deleted != 1 || report.Total() != 1 {
		t.Errorf("report = %+v", report)
	}
	if fmt.Sprint(client.mutations) != fmt.Sprint([]string{"delete old"}) {
		t.Errorf("mutations = %v", client.mutations)
	}

	again, err := engine.Sync(context.Background(), []*event.Event{a}, testWindow, true)
	if err != nil {
		t.Fatalf("second Sync() error: %v", err)
	}
	if again.Total() != 0 {
		t.Errorf("second run planned %d actions", again.Total())
	}
}

func TestFetchExisting_ListError(t *testing.T) {
	client := newFakeClient()
	client.listErr = errors.New("quota exceeded")

	_, err := NewEngine(client, "primary", Options{}).FetchExisting(context.Background(), testWindow)

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Op != "list" {
		t.Errorf("Op = %q, want list", remoteErr.Op)
	}
}

func TestSync_AppliesActions(t *testing.T) {
	keep := lesson("keep", "Физика", 1, 10)
	changed := lesson("changed", "Логика", 2, 10)
	client := newFakeClient(
		remoteFor("e-keep", keep),
		remoteFor("e-changed", changed),
		remoteFor("e-gone", lesson("gone", "Отменено", 3, 10)),
		unmanaged("personal", "Стоматолог"),
	)

	changedNow := *changed
	changedNow.Location = "Ауд. 505"
	fresh := []*event.Event{keep, &changedNow, lesson("new", "Римское право", 4, 12)}

	report, err := NewEngine(client, "primary", Options{}).Sync(context.Background(), fresh, testWindow, true)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}

	if report.Created != 1 || report.Updated != 1 || report.Deleted != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.Applied != 3 || report.Total() != 3 {
		t.Errorf("Applied = %d, Total = %d, want 3 and 3", report.Applied, report.Total())
	}
	want := []string{"update e-changed", "insert new", "delete e-gone"}
	if fmt.Sprint(client.mutations) != fmt.Sprint(want) {
		t.Errorf("mutations = %v, want %v", client.mutations, want)
	}
	if report.Actions[1].Kind != ActionCreate || report.Actions[1].EventID == "" {
		t.Error("CREATE summary should carry the new event ID")
	}

	for _, e := range client.events {
		if e.ID == "personal" {
			return
		}
	}
	t.Error("unmanaged event was removed")
}

func TestSync_Idempotent(t *testing.T) {
	client := newFakeClient(unmanaged("personal", "Стоматолог"))
	fresh := []*event.Event{
		lesson("a", "Физика", 1, 10),
		lesson("b", "Логика", 2, 10),
		lesson("c", "Римское право", 3, 12),
	}
	engine := NewEngine(client, "primary", Options{})

	first, err := engine.Sync(context.Background(), fresh, testWindow, true)
	if err != nil {
		t.Fatalf("first Sync() error: %v", err)
	}
	if first.Created != 3 {
		t.Fatalf("expected 3 creates on first run, got %d", first.Created)
	}

	second, err := engine.Sync(context.Background(), fresh, testWindow, true)
	if err != nil {
		t.Fatalf("second Sync() error: %v", err)
	}
	if second.Total() != 0 {
		t.Errorf("expected no actions on second run, got %+v", second.Actions)
	}
}

func TestSync_DryRunDoesNotMutate(t *testing.T) {
	client := newFakeClient(remoteFor("e-gone", lesson("gone", "Отменено", 3, 10)))
	fresh := []*event.Event{lesson("new", "Физика", 1, 10)}

	report, err := NewEngine(client, "primary", Options{DryRun: true}).Sync(context.Background(), fresh, testWindow, true)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}

	if len(client.mutations) != 0 {
		t.Errorf("dry run mutated the calendar: %v", client.mutations)
	}
	if !report.DryRun || report.Total() != 2 || report.Applied != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestSync_FailureStopsRun(t *testing.T) {
	client := newFakeClient()
	client.insertErr = errors.New("backend error")
	client.failAfter = 1

	fresh := []*event.Event{
		lesson("a", "Физика", 1, 10),
		lesson("b", "Логика", 2, 10),
		lesson("c", "Римское право", 3, 12),
	}

	report, err := NewEngine(client, "primary", Options{}).Sync(context.Background(), fresh, testWindow, false)

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remoteErr.Op != "insert" || remoteErr.SourceID != "b" {
		t.Errorf("RemoteError = %+v", remoteErr)
	}
	if report == nil || report.Applied != 1 {
		t.Fatalf("expected partial report with 1 applied action, got %+v", report)
	}
	if len(client.events) != 1 {
		t.Errorf("first insert should remain applied, calendar has %d events", len(client.events))
	}
}

func TestSync_Concurrent(t *testing.T) {
	client := newFakeClient()
	client.pageSize = 7

	var fresh []*event.Event
	for i := 0; i < 20; i++ {
		fresh = append(fresh, lesson(fmt.Sprintf("s%02d", i), "Физика", 1+i%7, 8+i%5))
	}

	engine := NewEngine(client, "primary", Options{Concurrency: 4})
	report, err := engine.Sync(context.Background(), fresh, testWindow, true)
	if err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if report.Applied != 20 || len(client.events) != 20 {
		t.Errorf("Applied = %d, calendar has %d events", report.Applied, len(client.events))
	}

	second, err := engine.Sync(context.Background(), fresh, testWindow, true)
	if err != nil {
		t.Fatalf("second Sync() error: %v", err)
	}
	if second.Total() != 0 {
		t.Errorf("expected no actions on second run, got %d", second.Total())
	}
}
