package retrieval

import "testing"

func TestTopKSortOrderAndTruncation(t *testing.T) {
	candidates := []Candidate{
		{ThreadTS: "3", Vector: []float64{1, 0}, Urgency: 0.1, UpdatedAt: 1},
		{ThreadTS: "1", Vector: []float64{1, 0}, Urgency: 0.9, UpdatedAt: 2},
		{ThreadTS: "2", Vector: []float64{0, 1}, Urgency: 0.5, UpdatedAt: 3},
	}
	q := []float64{1, 0}
	top := TopK(q, candidates, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 results, got %d", len(top))
	}
	if top[0].ThreadTS != "1" {
		t.Errorf("expected highest sim+urgency first, got %q", top[0].ThreadTS)
	}
}

func TestTopKDeterministicTieBreak(t *testing.T) {
	candidates := []Candidate{
		{ThreadTS: "zzz", Vector: []float64{1, 0}, Urgency: 0.5, UpdatedAt: 10},
		{ThreadTS: "aaa", Vector: []float64{1, 0}, Urgency: 0.5, UpdatedAt: 10},
	}
	top := TopK([]float64{1, 0}, candidates, 2)
	if top[0].ThreadTS != "aaa" {
		t.Errorf("expected lexicographic tie-break to favor aaa, got %q", top[0].ThreadTS)
	}
}
