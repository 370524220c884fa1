package gcal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/lkschedule/schedule-sync/internal/event"
)

var msk = time.FixedZone("MSK", 3*60*60)

func newTestClient(t *testing.T, opts Options, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	if opts.Backoff == 0 {
		opts.Backoff = time.Millisecond
	}
	c, err := New(context.Background(), opts,
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func managedItem(id, sourceID string) map[string]interface{} {
	return map[string]interface{}{
		"id":      id,
		"summary": "Физика",
		"start":   map[string]string{"dateTime": "2025-09-01T10:00:00+03:00"},
		"end":     map[string]string{"dateTime": "2025-09-01T11:30:00+03:00"},
		"extendedProperties": map[string]interface{}{
			"private": map[string]string{"managed_by": event.ManagedBy, "source_id": sourceID},
		},
	}
}

func TestListEvents(t *testing.T) {
	c := newTestClient(t, Options{ServerSideFilter: true}, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/calendars/primary/events") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		checks := map[string]string{
			"singleEvents":            "true",
			"showDeleted":             "false",
			"maxResults":              "2500",
			"privateExtendedProperty": "managed_by=" + event.ManagedBy,
			"timeMin":                 "2025-09-01T00:00:00+03:00",
			"timeMax":                 "2025-09-08T00:00:00+03:00",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("query %s = %q, want %q", k, got, want)
			}
		}

		resp := map[string]interface{}{}
		if q.Get("pageToken") == "" {
			resp["items"] = []interface{}{managedItem("e1", "s1")}
			resp["nextPageToken"] = "p2"
		} else {
			resp["items"] = []interface{}{managedItem("e2", "s2")}
		}
		json.NewEncoder(w).Encode(resp)
	})

	ctx := context.Background()
	from := time.Date(2025, 9, 1, 0, 0, 0, 0, msk)
	to := from.AddDate(0, 0, 7)

	items, next, err := c.ListEvents(ctx, "primary", from, to, "")
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if next != "p2" || len(items) != 1 || items[0].ID != "e1" {
		t.Fatalf("first page = %v, %q", items, next)
	}
	if !items[0].IsManaged() || items[0].SourceID() != "s1" {
		t.Errorf("item not converted: %+v", items[0])
	}

	items, next, err = c.ListEvents(ctx, "primary", from, to, next)
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if next != "" || len(items) != 1 || items[0].ID != "e2" {
		t.Errorf("second page = %v, %q", items, next)
	}
}

func TestListEvents_NoServerSideFilter(t *testing.T) {
	c := newTestClient(t, Options{}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("privateExtendedProperty") {
			t.Error("privateExtendedProperty should not be sent")
		}
		w.Write([]byte(`{"items":[]}`))
	})

	items, _, err := c.ListEvents(context.Background(), "primary", time.Now(), time.Now().Add(time.Hour), "")
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestInsertUpdateDelete(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	c := newTestClient(t, Options{}, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		methods = append(methods, r.Method)
		mu.Unlock()
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decoding body: %v", err)
			}
			if body["summary"] != "Физика" {
				t.Errorf("summary = %v", body["summary"])
			}
			body["id"] = "created-1"
			json.NewEncoder(w).Encode(body)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	evt := &event.Event{
		Title:    "Физика",
		Start:    time.Date(2025, 9, 1, 10, 0, 0, 0, msk),
		End:      time.Date(2025, 9, 1, 11, 30, 0, 0, msk),
		SourceID: "s1",
	}
	ctx := context.Background()

	created, err := c.InsertEvent(ctx, "primary", evt.ToRemoteBody())
	if err != nil {
		t.Fatalf("InsertEvent() error: %v", err)
	}
	if created.ID != "created-1" || created.SourceID() != "s1" {
		t.Errorf("created = %+v", created)
	}

	if _, err := c.UpdateEvent(ctx, "primary", "created-1", evt.ToRemoteBody()); err != nil {
		t.Fatalf("UpdateEvent() error: %v", err)
	}
	if err := c.DeleteEvent(ctx, "primary", "created-1"); err != nil {
		t.Fatalf("DeleteEvent() error: %v", err)
	}

	want := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(methods, ",") != strings.Join(want, ",") {
		t.Errorf("methods = %v, want %v", methods, want)
	}
}

func TestDeleteEvent_AlreadyGone(t *testing.T) {
	c := newTestClient(t, Options{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		w.Write([]byte(`{"error":{"code":410,"message":"Resource has been deleted"}}`))
	})

	if err := c.DeleteEvent(context.Background(), "primary", "gone"); err != nil {
		t.Errorf("DeleteEvent() of a deleted event error: %v", err)
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		failures  int32
		wantErr   bool
		wantCalls int32
	}{
		{"server error recovers", http.StatusServiceUnavailable, 1, false, 2},
		{"rate limit recovers", http.StatusTooManyRequests, 2, false, 3},
		{"retries exhausted", http.StatusInternalServerError, 10, true, 3},
		{"client error not retried", http.StatusBadRequest, 10, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, Options{MaxRetries: 2}, func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tt.failures {
					w.WriteHeader(tt.status)
					fmt.Fprintf(w, `{"error":{"code":%d,"message":"failure"}}`, tt.status)
					return
				}
				w.Write([]byte(`{"items":[]}`))
			})

			_, _, err := c.ListEvents(context.Background(), "primary", time.Now(), time.Now().Add(time.Hour), "")
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"429", &googleapi.Error{Code: 429}, true},
		{"500", &googleapi.Error{Code: 500}, true},
		{"503 wrapped", errors.Join(errors.New("ctx"), &googleapi.Error{Code: 503}), true},
		{"404", &googleapi.Error{Code: 404}, false},
		{"403 forbidden", &googleapi.Error{Code: 403}, false},
		{"403 rate limit", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
