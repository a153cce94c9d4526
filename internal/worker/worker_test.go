package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/ingest"
	"github.com/scalytics/threadwatch/internal/store"
	"github.com/scalytics/threadwatch/internal/threadstate"
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

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func TestPoolProcessesMessageEventIntoDigestItemAndEmbedding(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()

	ing := ingest.New(s, b)
	env := ingest.Envelope{EventID: "evt-1", Type: "event_callback", Event: ingest.InnerPayload{
		Type: "message", Channel: "C1", TS: "100.0", User: "U1", Text: "we need a decision by friday",
	}}
	if _, err := ing.Ingest(env, ""); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := New(s, b)
	pool.Start(ctx)

	waitFor(t, func() bool {
		_, ok, err := s.FetchThread("100.0")
		return err == nil && ok
	})

	item, ok, err := s.FetchDigestItem("100.0")
	if err != nil {
		t.Fatalf("fetch digest item: %v", err)
	}
	if !ok {
		t.Fatal("expected digest item to exist after processing")
	}
	if item.Channel != "C1" {
		t.Errorf("expected channel C1, got %q", item.Channel)
	}

	emb, ok, err := s.FetchEmbedding("100.0")
	if err != nil {
		t.Fatalf("fetch embedding: %v", err)
	}
	if !ok {
		t.Fatal("expected embedding to exist after processing")
	}
	if len(emb.Vector) == 0 {
		t.Error("expected non-empty embedding vector")
	}

	metrics, err := s.FetchMetrics()
	if err != nil {
		t.Fatalf("fetch metrics: %v", err)
	}
	if m, ok := metrics[bus.Hot]; !ok || m.ProcessedCount < 1 {
		t.Errorf("expected hot queue metric to be incremented, got %+v", metrics)
	}
}

func TestPoolStopsOnContextCancel(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pool := New(s, b)
	pool.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected pool to stop after context cancellation")
	}
}

func TestReindexRebuildsDigestItemFromCurrentMessages(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	pool := New(s, b)

	ing := ingest.New(s, b)
	env := ingest.Envelope{EventID: "evt-2", Type: "event_callback", Event: ingest.InnerPayload{
		Type: "message", Channel: "C2", TS: "200.0", User: "U1", Text: "urgent blocker",
	}}
	if _, err := ing.Ingest(env, bus.Backfill); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	job, err := b.Consume(context.Background(), bus.Backfill)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	innerEv := ingest.ToInnerEvent(job.Payload)
	threadTS, err := threadstate.Apply(s, innerEv)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := pool.Reindex(threadTS); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	item, ok, err := s.FetchDigestItem(threadTS)
	if err != nil || !ok {
		t.Fatalf("expected digest item after reindex, ok=%v err=%v", ok, err)
	}
	if item.Urgency <= 0 {
		t.Errorf("expected urgent text to score urgency > 0, got %v", item.Urgency)
	}
}
