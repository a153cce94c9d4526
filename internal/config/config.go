// Package config provides configuration types and loading for threadwatch.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration struct.
// Top-level groups: Store, Slack, Query, Feedback, Retrieval, Scheduler, HTTP, Bus.
type Config struct {
	Store     StoreConfig
	Slack     SlackConfig
	Query     QueryWeightsConfig
	Feedback  FeedbackConfig
	Retrieval RetrievalConfig
	Scheduler SchedulerConfig
	HTTP      HTTPConfig
	Bus       BusConfig
}

// ---------------------------------------------------------------------------
// Store – persistence location
// ---------------------------------------------------------------------------

// StoreConfig groups persistence settings.
type StoreConfig struct {
	DatabasePath string `envconfig:"DATABASE_PATH"`
}

// ---------------------------------------------------------------------------
// Slack – signature verification and OAuth
// ---------------------------------------------------------------------------

// SlackConfig groups intake signature checking and the OAuth v2 install flow.
type SlackConfig struct {
	SigningSecret   string `envconfig:"SLACK_SIGNING_SECRET"`
	VerifySignature bool   `envconfig:"SLACK_VERIFY_SIGNATURE"`
	ClientID        string `envconfig:"SLACK_CLIENT_ID"`
	ClientSecret    string `envconfig:"SLACK_CLIENT_SECRET"`
	RedirectURI     string `envconfig:"SLACK_REDIRECT_URI"`
	OAuthScopes     string `envconfig:"SLACK_OAUTH_SCOPES"`
	InstallQR       bool   `envconfig:"SLACK_INSTALL_QR"`
}

// ---------------------------------------------------------------------------
// Query – composite query-vector weights
// ---------------------------------------------------------------------------

// QueryWeightsConfig groups the role/user/phase blend used to build a
// user's composite query vector.
type QueryWeightsConfig struct {
	WeightRole  float64 `envconfig:"QUERY_WEIGHT_ROLE"`
	WeightUser  float64 `envconfig:"QUERY_WEIGHT_USER"`
	WeightPhase float64 `envconfig:"QUERY_WEIGHT_PHASE"`
}

// ---------------------------------------------------------------------------
// Feedback – online user-vector update
// ---------------------------------------------------------------------------

// FeedbackConfig groups the online feedback-loop's step size and decay.
type FeedbackConfig struct {
	EmbedAlpha float64 `envconfig:"USER_EMBED_ALPHA"`
	DecayDays  float64 `envconfig:"USER_DECAY_DAYS"`
	DecayBlend float64 `envconfig:"USER_DECAY_BLEND"`
}

// ---------------------------------------------------------------------------
// Retrieval – candidate window
// ---------------------------------------------------------------------------

// RetrievalConfig groups the candidate-window and recency-denominator size.
type RetrievalConfig struct {
	WindowHours float64 `envconfig:"RETRIEVAL_WINDOW_HOURS"`
}

// ---------------------------------------------------------------------------
// Scheduler – tick loop
// ---------------------------------------------------------------------------

// SchedulerConfig groups the periodic due-time check interval.
type SchedulerConfig struct {
	CheckInterval time.Duration `envconfig:"SCHEDULER_CHECK_INTERVAL"`
}

// ---------------------------------------------------------------------------
// HTTP – server networking
// ---------------------------------------------------------------------------

// HTTPConfig groups the HTTP server bind address.
type HTTPConfig struct {
	Addr string `envconfig:"HTTP_ADDR"`
}

// ---------------------------------------------------------------------------
// Bus – event routing transport
// ---------------------------------------------------------------------------

// BusConfig selects the event bus transport. The in-process driver
// (default) uses mutex-guarded in-memory queues; the kafka driver publishes the same
// routed-event envelope to three topics for multi-instance deployments.
type BusConfig struct {
	Driver  string   `envconfig:"EVENT_BUS_DRIVER"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			DatabasePath: "./app.db",
		},
		Slack: SlackConfig{
			VerifySignature: true,
			OAuthScopes:     "commands,chat:write,channels:read",
		},
		Query: QueryWeightsConfig{
			WeightRole:  0.45,
			WeightUser:  0.35,
			WeightPhase: 0.20,
		},
		Feedback: FeedbackConfig{
			EmbedAlpha: 0.90,
			DecayDays:  14,
			DecayBlend: 0.05,
		},
		Retrieval: RetrievalConfig{
			WindowHours: 24,
		},
		Scheduler: SchedulerConfig{
			CheckInterval: 60 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Bus: BusConfig{
			Driver: "memory",
		},
	}
}

// Load builds a Config from the documented defaults, then overlays
// environment variables per the envconfig tags above. For each tagged
// field envconfig first looks up THREADWATCH_<TAG> and falls back to the
// bare tag name (e.g. DATABASE_PATH) when the prefixed one is unset.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	sections := []any{
		&cfg.Store,
		&cfg.Slack,
		&cfg.Query,
		&cfg.Feedback,
		&cfg.Retrieval,
		&cfg.Scheduler,
		&cfg.HTTP,
		&cfg.Bus,
	}
	for _, section := range sections {
		if err := envconfig.Process("THREADWATCH", section); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
