// Package enrich derives labels, entities, urgency, a title, and a
// summary from a thread's accumulated text, mirroring a closed-vocabulary
// keyword classifier rather than a trained model.
package enrich

import (
	"regexp"
	"sort"
	"strings"

	"github.com/scalytics/threadwatch/internal/store"
)

// labelKeywords maps each label to the keyword set that triggers it.
// Iteration order must be stable for reproducible output, so callers
// range over labelOrder rather than this map directly.
var labelKeywords = map[string][]string{
	"DECISION": {"decision", "approve", "vote", "choose"},
	"RISK":     {"risk", "concern", "issue", "safer"},
	"BLOCKER":  {"blocker", "blocked", "cannot proceed"},
	"ACTION":   {"action", "todo", "follow up", "need to"},
	"FYI":      {"fyi", "for your info", "heads up"},
}

var labelOrder = []string{"DECISION", "RISK", "BLOCKER", "ACTION", "FYI"}

var (
	materials     = []string{"carbon fiber", "aluminum", "aluminium"}
	phaseHints    = []string{"evt", "dvt", "pvt"}
	vendors       = []string{"vendor a", "vendor b"}
	deadlines     = []string{"by friday", "by eod", "by end of day", "by monday", "by tuesday"}
	leadTimeRegex = regexp.MustCompile(`(?i)\b(\d+)\s+weeks\b`)
)

// phaseWordRegex builds a whole-word matcher for a phase hint; nothing
// is cached, so a new regexp is compiled on every call.
func phaseWordRegex(phase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phase) + `\b`)
}

// ClassifyLabels returns the sorted, deduplicated set of labels whose
// keywords appear anywhere in the case-folded text.
func ClassifyLabels(text string) []string {
	lowered := strings.ToLower(text)
	var labels []string
	for _, label := range labelOrder {
		for _, kw := range labelKeywords[label] {
			if strings.Contains(lowered, kw) {
				labels = append(labels, label)
				break
			}
		}
	}
	sort.Strings(labels)
	return labels
}

// ExtractEntities pulls the five closed-vocabulary entity lists out of text.
func ExtractEntities(text string) store.Entities {
	lowered := strings.ToLower(text)

	var e store.Entities
	for _, m := range materials {
		if strings.Contains(lowered, m) {
			e.Materials = append(e.Materials, m)
		}
	}
	for _, p := range phaseHints {
		if phaseWordRegex(p).MatchString(lowered) {
			e.Phases = append(e.Phases, strings.ToUpper(p))
		}
	}
	for _, v := range vendors {
		if strings.Contains(lowered, v) {
			e.Vendors = append(e.Vendors, titleCase(v))
		}
	}
	for _, d := range deadlines {
		if strings.Contains(lowered, d) {
			e.Deadlines = append(e.Deadlines, d)
		}
	}
	for _, match := range leadTimeRegex.FindAllString(text, -1) {
		e.LeadTimes = append(e.LeadTimes, match)
	}
	return e
}

// ComputeUrgency scores a thread 0..1 from its text and the reactions
// attached to its messages (as the raw reactions_json of each message).
func ComputeUrgency(text string, reactionsJSONs []string) float64 {
	lowered := strings.ToLower(text)
	var score float64
	if containsAny(lowered, deadlines) {
		score += 0.35
	}
	if strings.Contains(lowered, "urgent") || strings.Contains(lowered, "blocker") || strings.Contains(lowered, "blocked") {
		score += 0.25
	}
	if strings.Contains(lowered, "decision needed") || strings.Contains(lowered, "decision") {
		score += 0.1
	}
	if containsAnyPhase(lowered) {
		score += 0.15
	}
	for _, r := range reactionsJSONs {
		if r != "" && strings.Contains(r, "rotating_light") {
			score += 0.2
			break
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// titleCase capitalizes the first letter of each space-separated word,
// sufficient for the closed vendor vocabulary ("vendor a" -> "Vendor A").
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsAnyPhase(lowered string) bool {
	for _, p := range phaseHints {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// BuildTitle derives a human-facing title from extracted entities.
func BuildTitle(e store.Entities) string {
	materialSet := map[string]bool{}
	for _, m := range e.Materials {
		materialSet[strings.ToLower(m)] = true
	}
	if materialSet["carbon fiber"] && (materialSet["aluminum"] || materialSet["aluminium"]) {
		return "Material change proposal: aluminum -> carbon fiber"
	}
	if len(e.Materials) > 0 {
		set := map[string]bool{}
		var unique []string
		for _, m := range e.Materials {
			lm := strings.ToLower(m)
			if !set[lm] {
				set[lm] = true
				unique = append(unique, lm)
			}
		}
		sort.Strings(unique)
		return "Material discussion: " + strings.Join(unique, ", ")
	}
	return "Thread update"
}

// BuildSummary renders the root message plus up to five replies as a
// bulleted list, skipping messages with empty text.
func BuildSummary(messages []store.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var lines []string
	if messages[0].Text != "" {
		lines = append(lines, "- "+messages[0].Text)
	}
	end := len(messages)
	if end > 6 {
		end = 6
	}
	for _, m := range messages[1:end] {
		if m.Text != "" {
			lines = append(lines, "- "+m.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// Thread runs the full enrichment pipeline over one thread's accumulated
// text and message set.
func Thread(threadTS, text string, messages []store.Message) store.DigestItem {
	labels := ClassifyLabels(text)
	entities := ExtractEntities(text)
	reactionsJSONs := make([]string, len(messages))
	for i, m := range messages {
		reactionsJSONs[i] = m.ReactionsJSON
	}
	urgency := ComputeUrgency(text, reactionsJSONs)
	title := BuildTitle(entities)
	summary := BuildSummary(messages)

	channel := ""
	if len(messages) > 0 {
		channel = messages[0].Channel
	}

	return store.DigestItem{
		ThreadTS: threadTS,
		Channel:  channel,
		Title:    title,
		Labels:   labels,
		Entities: entities,
		Urgency:  urgency,
		Summary:  summary,
	}
}
