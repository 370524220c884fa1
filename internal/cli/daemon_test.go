package cli

import (
	"context"
	"testing"
	"time"

	"github.com/lkschedule/schedule-sync/internal/config"
)

func TestRunDaemon(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, cfg, true, func(context.Context) { runs++ })
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runDaemon() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
	if runs != 1 {
		t.Errorf("runs = %d, want 1 from --run-now", runs)
	}
}

func TestRunDaemon_InvalidSchedule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Schedule = "every morning"

	err := runDaemon(context.Background(), cfg, false, func(context.Context) {
		t.Error("job should not run")
	})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 1, "next", "soon", "dangling"})
	if fields["entry"] != 1 || fields["next"] != "soon" {
		t.Errorf("fields = %v", fields)
	}
	if len(fields) != 2 {
		t.Errorf("dangling key should be ignored: %v", fields)
	}
}
