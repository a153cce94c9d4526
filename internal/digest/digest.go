// Package digest assembles a ranked, explained list of threads for one
// user/project by chaining the profile, retrieval, and rerank stages.
package digest

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/scalytics/threadwatch/internal/profile"
	"github.com/scalytics/threadwatch/internal/rerank"
	"github.com/scalytics/threadwatch/internal/retrieval"
	"github.com/scalytics/threadwatch/internal/store"
)

// roleSignalKeywords trigger the "role match" reason when a role's
// description mentions supply-chain work and the item carries vendor or
// lead-time entities.
var roleSignalKeywords = []string{"supply", "procure", "vendor", "lead time"}

// ScoreBreakdown is the per-item ranking diagnostic surfaced in a digest.
type ScoreBreakdown struct {
	FinalScore       float64 `json:"final_score"`
	Sim              float64 `json:"sim"`
	Urgency          float64 `json:"urgency"`
	Ownership        float64 `json:"ownership"`
	Recency          float64 `json:"recency"`
	DiversityPenalty float64 `json:"diversity_penalty"`
}

// Item is one ranked, explained thread in a digest.
type Item struct {
	ThreadTS       string         `json:"thread_ts"`
	Title          string         `json:"title"`
	Summary        string         `json:"summary"`
	Labels         []string       `json:"labels"`
	Entities       store.Entities `json:"entities"`
	Urgency        float64        `json:"urgency"`
	WhyShown       string         `json:"why_shown"`
	ScoreBreakdown ScoreBreakdown `json:"score_breakdown"`
}

// Digest is the built result, already persisted by the time Build returns.
type Digest struct {
	DigestID string `json:"digest_id"`
	Items    []Item `json:"items"`
}

// Weights mirrors profile.QueryVectorWeights; kept as a distinct alias
// so callers don't need to import internal/profile just to build one.
type Weights = profile.QueryVectorWeights

// Build runs the full pipeline: composite query vector → candidate load
// → top-K retrieval → rerank → why-shown explanation → persistence.
func Build(s *store.Store, userID, projectID string, n int, weights Weights, windowHours float64) (Digest, error) {
	profiles := profile.New(s)
	qResult, err := profiles.GetQueryVector(userID, projectID, weights)
	if err != nil {
		return Digest{}, err
	}

	candidates, err := retrieval.LoadCandidates(s, retrieval.Filter{
		ProjectID:   projectID,
		WindowHours: windowHours,
	})
	if err != nil {
		return Digest{}, err
	}
	topK := retrieval.TopK(qResult.Vector, candidates, 50)

	ranked, err := rerank.Rerank(s, topK, userID, n, windowHours)
	if err != nil {
		return Digest{}, err
	}

	var roleDescription string
	if qResult.RoleID != "" {
		if role, ok, err := s.FetchRole(qResult.RoleID); err == nil && ok {
			roleDescription = role.Description
		}
	}

	items := make([]Item, len(ranked))
	for i, r := range ranked {
		items[i] = Item{
			ThreadTS: r.ThreadTS,
			Title:    r.Title,
			Summary:  r.Summary,
			Labels:   r.Labels,
			Entities: r.Entities,
			Urgency:  r.Urgency,
			WhyShown: whyShown(r, roleDescription, qResult.PhaseKey),
			ScoreBreakdown: ScoreBreakdown{
				FinalScore:       r.FinalScore,
				Sim:              r.SimScore,
				Urgency:          r.Urgency,
				Ownership:        r.Ownership,
				Recency:          r.Recency,
				DiversityPenalty: r.DiversityPenalty,
			},
		}
	}

	digestID := "dig-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return Digest{}, err
	}
	if err := s.InsertDigest(digestID, userID, projectID, string(itemsJSON)); err != nil {
		return Digest{}, err
	}

	return Digest{DigestID: digestID, Items: items}, nil
}

func whyShown(item rerank.Scored, roleDescription, phaseKey string) string {
	var reasons []string
	if item.Urgency >= 0.8 {
		reasons = append(reasons, "High urgency")
	}
	if roleDescription != "" {
		lowered := strings.ToLower(roleDescription)
		for _, kw := range roleSignalKeywords {
			if strings.Contains(lowered, kw) {
				if len(item.Entities.Vendors) > 0 || len(item.Entities.LeadTimes) > 0 {
					reasons = append(reasons, "Role match: vendor/lead time")
				}
				break
			}
		}
	}
	if phaseKey != "" {
		upperPhase := strings.ToUpper(phaseKey)
		for _, p := range item.Entities.Phases {
			if strings.ToUpper(p) == upperPhase {
				reasons = append(reasons, "Phase match: "+upperPhase)
				break
			}
		}
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Semantic similarity")
	}
	return strings.Join(reasons, "; ")
}
