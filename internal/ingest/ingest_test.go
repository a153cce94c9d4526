package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/store"
)

func sign(body []byte, timestamp, secret string) string {
	base := "v0:" + timestamp + ":" + string(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySlackSignatureValid(t *testing.T) {
	body := []byte(`{"type":"event_callback"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	secret := "shh"
	sig := sign(body, ts, secret)
	if !VerifySlackSignature(body, ts, sig, secret) {
		t.Error("expected valid signature to verify")
	}
}

func TestVerifySlackSignatureRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	secret := "shh"
	sig := sign(body, ts, secret)
	if VerifySlackSignature(body, ts, sig, secret) {
		t.Error("expected stale timestamp to be rejected")
	}
}

func TestVerifySlackSignatureRejectsMismatch(t *testing.T) {
	body := []byte(`{}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	if VerifySlackSignature(body, ts, "v0=deadbeef", "shh") {
		t.Error("expected mismatched signature to be rejected")
	}
}

func TestToInnerEventNewMessage(t *testing.T) {
	env := Envelope{EventID: "e1", Type: "event_callback", Event: InnerPayload{
		Type: "message", Channel: "C1", TS: "100.1", User: "U1", Text: "hello",
	}}
	ev := toInnerEvent(env)
	if ev.Kind != "message" || ev.Channel != "C1" || ev.TS != "100.1" {
		t.Errorf("unexpected inner event: %+v", ev)
	}
}

func TestToInnerEventMessageChanged(t *testing.T) {
	env := Envelope{Event: InnerPayload{
		Type: "message", Subtype: "message_changed", Channel: "C1",
		Message: &NestedMessage{TS: "100.1", Text: "edited"},
	}}
	ev := toInnerEvent(env)
	if ev.Subtype != "message_changed" || ev.TargetTS != "100.1" || ev.Text != "edited" {
		t.Errorf("unexpected inner event: %+v", ev)
	}
}

func TestToInnerEventReactionAdded(t *testing.T) {
	env := Envelope{Event: InnerPayload{
		Type: "reaction_added", Channel: "C1", Reaction: "rotating_light",
		Item: &ItemRef{TS: "100.1", Channel: "C1"},
	}}
	ev := toInnerEvent(env)
	if ev.Kind != "reaction_added" || ev.TargetTS != "100.1" || ev.ReactionName != "rotating_light" {
		t.Errorf("unexpected inner event: %+v", ev)
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestDedupesSecondCall(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := New(s, b)

	env := Envelope{EventID: "evt-1", Type: "event_callback", Event: InnerPayload{Type: "message", Channel: "C1", TS: "1.0", Text: "hi"}}

	first, err := ing.Ingest(env, "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if first.Status != "queued" {
		t.Errorf("expected queued, got %+v", first)
	}

	second, err := ing.Ingest(env, "")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if second.Status != "duplicate" {
		t.Errorf("expected duplicate, got %+v", second)
	}

	if b.QueueSize(bus.Standard) != 1 {
		t.Errorf("expected exactly one job enqueued, got %d", b.QueueSize(bus.Standard))
	}
}

func TestIngestRoutesHotKeywordToHotQueue(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := New(s, b)

	env := Envelope{EventID: "evt-2", Type: "event_callback", Event: InnerPayload{Type: "message", Channel: "C1", TS: "2.0", Text: "this is a blocker"}}
	if _, err := ing.Ingest(env, ""); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if b.QueueSize(bus.Hot) != 1 {
		t.Errorf("expected job routed to hot queue, got hot size %d", b.QueueSize(bus.Hot))
	}
}

func TestIngestForcesBackfillQueue(t *testing.T) {
	s := openTestStore(t)
	b := bus.NewMemoryBus()
	defer b.Close()
	ing := New(s, b)

	env := Envelope{EventID: "evt-3", Type: "event_callback", Event: InnerPayload{Type: "message", Channel: "C1", TS: "3.0", Text: "plain"}}
	if _, err := ing.Ingest(env, bus.Backfill); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if b.QueueSize(bus.Backfill) != 1 {
		t.Errorf("expected job routed to backfill queue, got %d", b.QueueSize(bus.Backfill))
	}
}
