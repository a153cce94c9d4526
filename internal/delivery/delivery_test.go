package delivery

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scalytics/threadwatch/internal/digest"
	"github.com/scalytics/threadwatch/internal/slackapi"
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

func TestFormatMessageListsTitlesAndReasons(t *testing.T) {
	items := []digest.Item{
		{Title: "Carbon Fiber Spec Change", WhyShown: "High urgency"},
		{Title: "", WhyShown: "Semantic similarity"},
	}
	msg := formatMessage(items)
	if !strings.Contains(msg, "Daily Digest") {
		t.Errorf("expected header, got %q", msg)
	}
	if !strings.Contains(msg, "Carbon Fiber Spec Change — High urgency") {
		t.Errorf("expected first item line, got %q", msg)
	}
	if !strings.Contains(msg, "Untitled — Semantic similarity") {
		t.Errorf("expected untitled fallback, got %q", msg)
	}
}

func TestFormatBlocksIncludesHeaderAndOneBlockPerItem(t *testing.T) {
	items := []digest.Item{{Title: "A", WhyShown: "x"}, {Title: "B", WhyShown: "y"}}
	blocks := formatBlocks(items)
	if len(blocks) != len(items)+1 {
		t.Fatalf("expected %d blocks, got %d", len(items)+1, len(blocks))
	}
}

func TestDeliverDigestShortCircuitsOnDuplicate(t *testing.T) {
	s := openTestStore(t)
	if err := s.InsertDelivery(store.Delivery{
		DeliveryID: "del-existing",
		DigestID:   "dig-1",
		TeamID:     "T1",
		UserID:     "U1",
		Status:     "delivered",
	}); err != nil {
		t.Fatalf("seed delivery: %v", err)
	}

	client := slackapi.New(s, slackapi.Config{})
	result, err := DeliverDigest(context.Background(), s, client, "", "dig-1", "T1", "U1", nil)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.Status != statusDuplicate || result.DeliveryID != "del-existing" {
		t.Errorf("expected duplicate short-circuit, got %+v", result)
	}
}

func TestDeliverDigestRecordsFailureWhenWorkspaceUnknown(t *testing.T) {
	s := openTestStore(t)
	client := slackapi.New(s, slackapi.Config{})
	result, err := DeliverDigest(context.Background(), s, client, "", "dig-2", "T-unknown", "U1", []digest.Item{{Title: "A"}})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.Status != statusFailed {
		t.Errorf("expected failed status for unknown workspace, got %+v", result)
	}

	stored, ok, err := s.FetchDeliveryByDigest("dig-2")
	if err != nil || !ok {
		t.Fatalf("expected failure recorded, ok=%v err=%v", ok, err)
	}
	if stored.Status != statusFailed || stored.Error == "" {
		t.Errorf("expected failure record with error, got %+v", stored)
	}
}
