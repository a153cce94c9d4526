// Package retrieval loads enriched, embedded threads as ranking
// candidates and scores them by cosine similarity to a query vector.
package retrieval

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/scalytics/threadwatch/internal/embed"
	"github.com/scalytics/threadwatch/internal/store"
)

// ErrProjectNotFound mirrors the original's ValueError("project_not_found").
var ErrProjectNotFound = errors.New("project_not_found")

// Candidate is one thread scored against a query vector.
type Candidate struct {
	ThreadTS  string
	Channel   string
	Vector    []float64
	Urgency   float64
	Labels    []string
	Entities  store.Entities
	UpdatedAt float64
	Title     string
	Summary   string
	SimScore  float64
}

// Filter narrows the candidate window.
type Filter struct {
	ProjectID   string
	Channels    []string
	SinceTS     float64 // zero means "use WindowHours"
	WindowHours float64
	LabelFilter []string
}

// LoadCandidates returns every digest item updated at or after the
// window start, scoped to channels per f, label-filtered if requested.
//
// If f.ProjectID is set, the channel scope comes from that project's
// mapped channels — and an empty mapping means an empty candidate set,
// not "no restriction" (see DESIGN.md's open-question resolution for
// why this departs from the original Python's _load_project_channels).
func LoadCandidates(s *store.Store, f Filter) ([]Candidate, error) {
	channels := f.Channels
	if f.ProjectID != "" {
		project, ok, err := s.FetchProject(f.ProjectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrProjectNotFound
		}
		channels = project.Channels
		if channels == nil {
			channels = []string{}
		}
	}

	sinceTS := f.SinceTS
	if sinceTS == 0 {
		windowHours := f.WindowHours
		if windowHours == 0 {
			windowHours = 24
		}
		sinceTS = nowSeconds() - windowHours*3600
	}

	labelFilter := make([]string, len(f.LabelFilter))
	for i, l := range f.LabelFilter {
		labelFilter[i] = strings.ToUpper(l)
	}

	if f.ProjectID != "" && len(channels) == 0 {
		return nil, nil
	}

	query := `
		SELECT di.thread_ts, di.channel, di.labels_json, di.entities_json, di.urgency,
		       di.updated_at, di.title, di.summary, e.vector_json
		FROM digest_items di
		JOIN embeddings e ON e.thread_ts = di.thread_ts
		WHERE di.updated_at >= ?`
	args := []any{sinceTS}
	if len(channels) > 0 {
		placeholders := strings.Repeat("?,", len(channels))
		placeholders = placeholders[:len(placeholders)-1]
		query += " AND di.channel IN (" + placeholders + ")"
		for _, c := range channels {
			args = append(args, c)
		}
	}

	rows, err := s.DB().Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var labelsJSON, entitiesJSON, vectorJSON string
		if err := rows.Scan(&c.ThreadTS, &c.Channel, &labelsJSON, &entitiesJSON, &c.Urgency, &c.UpdatedAt, &c.Title, &c.Summary, &vectorJSON); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(labelsJSON), &c.Labels)
		if len(labelFilter) > 0 && !hasAnyLabel(c.Labels, labelFilter) {
			continue
		}
		_ = json.Unmarshal([]byte(entitiesJSON), &c.Entities)
		_ = json.Unmarshal([]byte(vectorJSON), &c.Vector)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func hasAnyLabel(labels, filter []string) bool {
	for _, l := range labels {
		for _, f := range filter {
			if l == f {
				return true
			}
		}
	}
	return false
}

// TopK scores candidates by cosine similarity to q (plain dot product —
// both operands are already unit-norm) and returns the top k, sorted by
// (-sim_score, -urgency, -updated_at, thread_ts) for deterministic
// tie-breaking.
func TopK(q []float64, candidates []Candidate, k int) []Candidate {
	scored := make([]Candidate, len(candidates))
	copy(scored, candidates)
	for i := range scored {
		scored[i].SimScore = embed.Dot(q, scored[i].Vector)
	}
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.SimScore != b.SimScore {
			return a.SimScore > b.SimScore
		}
		if a.Urgency != b.Urgency {
			return a.Urgency > b.Urgency
		}
		if a.UpdatedAt != b.UpdatedAt {
			return a.UpdatedAt > b.UpdatedAt
		}
		return a.ThreadTS < b.ThreadTS
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
