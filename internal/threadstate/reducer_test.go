package threadstate

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/scalytics/threadwatch/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyNewMessageCreatesThread(t *testing.T) {
	s := openTestStore(t)

	threadTS, err := Apply(s, InnerEvent{
		Kind: "message", Channel: "C1", TS: "100.000", User: "U1", Text: "hello blocker",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if threadTS != "100.000" {
		t.Fatalf("expected thread_ts defaulted to ts, got %q", threadTS)
	}

	th, ok, err := s.FetchThread(threadTS)
	if err != nil || !ok {
		t.Fatalf("expected thread to exist: ok=%v err=%v", ok, err)
	}
	if th.ReplyCount != 0 {
		t.Errorf("expected 0 replies for a root-only thread, got %d", th.ReplyCount)
	}
	if len(th.Participants) != 1 || th.Participants[0] != "U1" {
		t.Errorf("unexpected participants: %v", th.Participants)
	}
}

func TestApplyMessageChangedUpdatesTextAndClearsDeleted(t *testing.T) {
	s := openTestStore(t)
	_, _ = Apply(s, InnerEvent{Kind: "message", Channel: "C1", TS: "100.000", User: "U1", Text: "original"})

	_, err := Apply(s, InnerEvent{
		Kind: "message", Subtype: "message_changed", Channel: "C1", TargetTS: "100.000", Text: "edited",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	m, ok, err := s.FetchMessage("C1", "100.000")
	if err != nil || !ok {
		t.Fatalf("expected message: ok=%v err=%v", ok, err)
	}
	if m.Text != "edited" {
		t.Errorf("expected edited text, got %q", m.Text)
	}
	if m.IsDeleted {
		t.Error("expected is_deleted cleared on edit")
	}
}

func TestApplyReactionAddedThenRemovedDropsEntry(t *testing.T) {
	s := openTestStore(t)
	_, _ = Apply(s, InnerEvent{Kind: "message", Channel: "C1", TS: "100.000", User: "U1", Text: "hi"})

	if _, err := Apply(s, InnerEvent{Kind: "reaction_added", Channel: "C1", TargetTS: "100.000", ReactionName: "thumbsup"}); err != nil {
		t.Fatalf("apply add: %v", err)
	}
	th, _, _ := s.FetchThread("100.000")
	if th.ReactionCount != 1 {
		t.Fatalf("expected reaction count 1, got %d", th.ReactionCount)
	}

	if _, err := Apply(s, InnerEvent{Kind: "reaction_removed", Channel: "C1", TargetTS: "100.000", ReactionName: "thumbsup"}); err != nil {
		t.Fatalf("apply remove: %v", err)
	}
	th, _, _ = s.FetchThread("100.000")
	if th.ReactionCount != 0 {
		t.Fatalf("expected reaction count 0 after removal, got %d", th.ReactionCount)
	}
	m, ok, err := s.FetchMessage("C1", "100.000")
	if err != nil || !ok {
		t.Fatalf("expected message: ok=%v err=%v", ok, err)
	}
	if strings.Contains(m.ReactionsJSON, "thumbsup") {
		t.Errorf("expected thumbsup entry dropped, got %s", m.ReactionsJSON)
	}
}

func TestApplyDiscardsEventMissingChannel(t *testing.T) {
	s := openTestStore(t)
	threadTS, err := Apply(s, InnerEvent{Kind: "message", TS: "100.000", Text: "x"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if threadTS != "" {
		t.Errorf("expected discard for missing channel, got thread_ts %q", threadTS)
	}
}
