// Package rerank turns similarity-scored candidates into a final ranked
// list: a multi-factor base score, a forced must-include slot for the
// most urgent blocker/decision, and iterative MMR diversity selection.
package rerank

import (
	"sort"
	"strings"
	"time"

	"github.com/scalytics/threadwatch/internal/embed"
	"github.com/scalytics/threadwatch/internal/retrieval"
	"github.com/scalytics/threadwatch/internal/store"
)

// Scored extends a retrieval candidate with rerank-stage fields.
type Scored struct {
	retrieval.Candidate
	Recency           float64
	Ownership         float64
	BaseScore         float64
	ForceIncluded     bool
	DiversityPenalty  float64
	FinalScore        float64
}

const lambdaDiversity = 0.2

func recencyScore(updatedAt, now, windowSeconds float64) float64 {
	if windowSeconds <= 0 {
		return 0.0
	}
	age := now - updatedAt
	if age <= 0 {
		return 1.0
	}
	if age >= windowSeconds {
		return 0.0
	}
	return 1.0 - age/windowSeconds
}

func ownershipScore(s *store.Store, threadTS, userID string) (float64, error) {
	messages, err := s.MessagesForThread(threadTS)
	if err != nil {
		return 0, err
	}
	mention := "<@" + userID + ">"
	for _, m := range messages {
		if m.User == userID {
			return 1.0, nil
		}
		if strings.Contains(m.Text, mention) {
			return 1.0, nil
		}
	}
	return 0.0, nil
}

func baseScore(sim, urgency, ownership, recency float64) float64 {
	return 0.55*sim + 0.20*urgency + 0.15*ownership + 0.10*recency
}

// Rerank scores each candidate, force-includes the single most urgent
// BLOCKER/DECISION candidate (urgency >= 0.8) if one exists, then fills
// the remaining n-1 (or n) slots via iterative MMR: each round picks the
// candidate maximizing final_score = base_score - lambda * max cosine
// similarity to anything already selected.
func Rerank(s *store.Store, candidates []retrieval.Candidate, userID string, n int, windowHours float64) ([]Scored, error) {
	windowSeconds := windowHours * 3600
	now := float64(time.Now().UnixNano()) / 1e9

	enriched := make([]Scored, len(candidates))
	for i, c := range candidates {
		recency := recencyScore(c.UpdatedAt, now, windowSeconds)
		ownership, err := ownershipScore(s, c.ThreadTS, userID)
		if err != nil {
			return nil, err
		}
		base := baseScore(c.SimScore, c.Urgency, ownership, recency)
		enriched[i] = Scored{
			Candidate:  c,
			Recency:    recency,
			Ownership:  ownership,
			BaseScore:  base,
			FinalScore: base,
		}
	}

	var mustInclude []int
	for i, c := range enriched {
		if (hasLabel(c.Labels, "BLOCKER") || hasLabel(c.Labels, "DECISION")) && c.Urgency >= 0.8 {
			mustInclude = append(mustInclude, i)
		}
	}

	var selected []Scored
	selectedTS := map[string]bool{}
	if len(mustInclude) > 0 {
		sort.Slice(mustInclude, func(a, b int) bool {
			x, y := enriched[mustInclude[a]], enriched[mustInclude[b]]
			if x.BaseScore != y.BaseScore {
				return x.BaseScore > y.BaseScore
			}
			if x.Urgency != y.Urgency {
				return x.Urgency > y.Urgency
			}
			if x.UpdatedAt != y.UpdatedAt {
				return x.UpdatedAt > y.UpdatedAt
			}
			return x.ThreadTS < y.ThreadTS
		})
		forced := enriched[mustInclude[0]]
		forced.ForceIncluded = true
		selected = append(selected, forced)
		selectedTS[forced.ThreadTS] = true
	}

	var remaining []Scored
	for _, c := range enriched {
		if !selectedTS[c.ThreadTS] {
			remaining = append(remaining, c)
		}
	}

	for len(remaining) > 0 && len(selected) < n {
		for i := range remaining {
			maxSim := 0.0
			if len(selected) > 0 {
				for _, sel := range selected {
					sim := embed.Dot(remaining[i].Vector, sel.Vector)
					if sim > maxSim {
						maxSim = sim
					}
				}
			}
			penalty := lambdaDiversity * maxSim
			remaining[i].DiversityPenalty = penalty
			remaining[i].FinalScore = remaining[i].BaseScore - penalty
		}
		sort.Slice(remaining, func(i, j int) bool {
			a, b := remaining[i], remaining[j]
			if a.FinalScore != b.FinalScore {
				return a.FinalScore > b.FinalScore
			}
			if a.BaseScore != b.BaseScore {
				return a.BaseScore > b.BaseScore
			}
			if a.Urgency != b.Urgency {
				return a.Urgency > b.Urgency
			}
			if a.UpdatedAt != b.UpdatedAt {
				return a.UpdatedAt > b.UpdatedAt
			}
			return a.ThreadTS < b.ThreadTS
		})
		selected = append(selected, remaining[0])
		remaining = remaining[1:]
	}

	return selected, nil
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
