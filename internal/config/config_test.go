package config

import "testing"

func TestDefaultConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Store.DatabasePath != "./app.db" {
		t.Errorf("expected default database path ./app.db, got %s", cfg.Store.DatabasePath)
	}
	if !cfg.Slack.VerifySignature {
		t.Error("expected signature verification enabled by default")
	}
	if cfg.Query.WeightRole != 0.45 || cfg.Query.WeightUser != 0.35 || cfg.Query.WeightPhase != 0.20 {
		t.Errorf("unexpected default query weights: %+v", cfg.Query)
	}
	if cfg.Feedback.EmbedAlpha != 0.90 || cfg.Feedback.DecayDays != 14 || cfg.Feedback.DecayBlend != 0.05 {
		t.Errorf("unexpected default feedback config: %+v", cfg.Feedback)
	}
	if cfg.Retrieval.WindowHours != 24 {
		t.Errorf("expected default retrieval window 24h, got %v", cfg.Retrieval.WindowHours)
	}
	if cfg.Bus.Driver != "memory" {
		t.Errorf("expected default bus driver memory, got %s", cfg.Bus.Driver)
	}
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/custom.db")
	t.Setenv("QUERY_WEIGHT_ROLE", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.DatabasePath != "/tmp/custom.db" {
		t.Errorf("expected overlaid database path, got %s", cfg.Store.DatabasePath)
	}
	if cfg.Query.WeightRole != 0.5 {
		t.Errorf("expected overlaid role weight 0.5, got %v", cfg.Query.WeightRole)
	}
}
