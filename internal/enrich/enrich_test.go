package enrich

import (
	"testing"

	"github.com/scalytics/threadwatch/internal/store"
)

func TestClassifyLabelsDedupedAndSorted(t *testing.T) {
	labels := ClassifyLabels("We have a blocker and need a decision, also fyi heads up")
	want := []string{"BLOCKER", "DECISION", "FYI"}
	if len(labels) != len(want) {
		t.Fatalf("got %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("got %v, want %v", labels, want)
		}
	}
}

func TestExtractEntities(t *testing.T) {
	e := ExtractEntities("Switching to carbon fiber from aluminum, vendor a needs 6 weeks, EVT by friday")
	if len(e.Materials) != 2 {
		t.Errorf("expected 2 materials, got %v", e.Materials)
	}
	if len(e.Phases) != 1 || e.Phases[0] != "EVT" {
		t.Errorf("expected phase EVT, got %v", e.Phases)
	}
	if len(e.Vendors) != 1 || e.Vendors[0] != "Vendor A" {
		t.Errorf("expected Vendor A, got %v", e.Vendors)
	}
	if len(e.Deadlines) != 1 || e.Deadlines[0] != "by friday" {
		t.Errorf("expected by friday, got %v", e.Deadlines)
	}
	if len(e.LeadTimes) != 1 || e.LeadTimes[0] != "6 weeks" {
		t.Errorf("expected 6 weeks, got %v", e.LeadTimes)
	}
}

func TestComputeUrgencyClampsAtOne(t *testing.T) {
	u := ComputeUrgency("urgent blocker, decision needed by friday, EVT phase", []string{`[{"name":"rotating_light","count":1}]`})
	if u != 1.0 {
		t.Errorf("expected clamped urgency 1.0, got %v", u)
	}
}

func TestBuildTitleMaterialChangeProposal(t *testing.T) {
	e := ExtractEntities("moving from aluminum to carbon fiber")
	if got := BuildTitle(e); got != "Material change proposal: aluminum -> carbon fiber" {
		t.Errorf("unexpected title: %q", got)
	}
}

func TestBuildTitleFallback(t *testing.T) {
	e := store.Entities{}
	if got := BuildTitle(e); got != "Thread update" {
		t.Errorf("unexpected fallback title: %q", got)
	}
}

func TestBuildSummaryLimitsToFiveReplies(t *testing.T) {
	messages := make([]store.Message, 8)
	for i := range messages {
		messages[i] = store.Message{Text: "line"}
	}
	summary := BuildSummary(messages)
	lines := 0
	for _, c := range summary {
		if c == '\n' {
			lines++
		}
	}
	if lines+1 != 6 {
		t.Errorf("expected root + 5 replies = 6 lines, got %d", lines+1)
	}
}
