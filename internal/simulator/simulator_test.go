package simulator

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/ingest"
	"github.com/scalytics/threadwatch/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScenarioEventsUnknownScenario(t *testing.T) {
	if _, err := ScenarioEvents("nope", NewClock()); err != ErrUnknownScenario {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestCarbonFiberDemoProducesExpectedEventCount(t *testing.T) {
	events, err := ScenarioEvents("carbon_fiber_demo", NewClock())
	if err != nil {
		t.Fatalf("scenario events: %v", err)
	}
	// 9 messages/edit + 1 reaction = 10 envelopes.
	if len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
	first := events[0]
	if first.Event.Type != "message" || first.Event.Channel != "C_DRONE_STRUCT" {
		t.Errorf("unexpected first event: %+v", first)
	}
}

func TestSeedMockIngestsAllEventsOnce(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := ingest.New(s, b)
	d := New(ing, b)

	results, err := d.SeedMock()
	if err != nil {
		t.Fatalf("seed mock: %v", err)
	}
	if len(results) != 10 {
		t.Fatalf("expected 10 seed results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != "queued" {
			t.Errorf("expected every seeded event queued, got %+v", r)
		}
	}

	total := 0
	for _, q := range bus.Queues {
		total += b.QueueSize(q)
	}
	if total != 10 {
		t.Errorf("expected 10 jobs enqueued across queues, got %d", total)
	}
}

func TestStartRejectsConcurrentRun(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := ingest.New(s, b)
	d := New(ing, b)

	if err := d.Start("carbon_fiber_demo", 1000, 0, false, "run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if err := d.Start("carbon_fiber_demo", 1000, 0, false, "run-2"); err != ErrAlreadyRunning {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestStartStopsAfterMaxEvents(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := ingest.New(s, b)
	d := New(ing, b)

	if err := d.Start("carbon_fiber_demo", 1000, 3, false, "run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !d.Status().Running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	status := d.Status()
	if status.Running {
		t.Fatal("expected stream to stop after max_events")
	}
	if status.EmittedCount != 3 {
		t.Errorf("expected emitted_count 3, got %d", status.EmittedCount)
	}
}

func TestStopHaltsStreamEarly(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := ingest.New(s, b)
	d := New(ing, b)

	if err := d.Start("carbon_fiber_demo", 1, 0, false, "run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !d.Status().Running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if d.Status().Running {
		t.Fatal("expected stream to stop after Stop()")
	}
}

func TestResetClearsState(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := ingest.New(s, b)
	d := New(ing, b)

	if err := d.Start("carbon_fiber_demo", 1000, 1, false, "run-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	d.Reset()
	status := d.Status()
	if status.Running || status.ScenarioID != "" || status.EmittedCount != 0 {
		t.Errorf("expected cleared state after reset, got %+v", status)
	}
}
