package rerank

import (
	"path/filepath"
	"testing"

	"github.com/scalytics/threadwatch/internal/retrieval"
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

func TestRerankForcesMostUrgentBlocker(t *testing.T) {
	s := openTestStore(t)

	candidates := []retrieval.Candidate{
		{ThreadTS: "low", Vector: []float64{1, 0}, Urgency: 0.2, SimScore: 0.9, UpdatedAt: 100},
		{ThreadTS: "urgent-blocker", Vector: []float64{0, 1}, Urgency: 0.9, SimScore: 0.1, Labels: []string{"BLOCKER"}, UpdatedAt: 100},
	}

	scored, err := Rerank(s, candidates, "U1", 2, 24)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 results, got %d", len(scored))
	}
	if !scored[0].ForceIncluded || scored[0].ThreadTS != "urgent-blocker" {
		t.Errorf("expected urgent-blocker force-included first, got %+v", scored[0])
	}
}

func TestRerankMMRPenalizesSimilarItems(t *testing.T) {
	s := openTestStore(t)

	candidates := []retrieval.Candidate{
		{ThreadTS: "a", Vector: []float64{1, 0}, Urgency: 0.3, SimScore: 0.8, UpdatedAt: 100},
		{ThreadTS: "b", Vector: []float64{1, 0}, Urgency: 0.3, SimScore: 0.79, UpdatedAt: 100},
		{ThreadTS: "c", Vector: []float64{0, 1}, Urgency: 0.3, SimScore: 0.5, UpdatedAt: 100},
	}
	scored, err := Rerank(s, candidates, "U1", 3, 24)
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if scored[0].ThreadTS != "a" {
		t.Fatalf("expected a first by base score, got %q", scored[0].ThreadTS)
	}
	// b's base score (0.4945) beats c's (0.335), but b is identical to a
	// and takes a 0.2 penalty (0.2945), so the orthogonal c overtakes it.
	if scored[1].ThreadTS != "c" || scored[2].ThreadTS != "b" {
		t.Fatalf("expected c before b after the MMR penalty, got %q then %q", scored[1].ThreadTS, scored[2].ThreadTS)
	}
	if scored[2].DiversityPenalty == 0 {
		t.Errorf("expected b to carry a nonzero diversity penalty near a, got %+v", scored[2])
	}
}
