// Package httpapi wires every threadwatch HTTP route to its underlying
// package and translates domain sentinel errors into the status codes
// spec'd for the surface: 400 validation, 401 signature, 403
// authorization, 404 unknown entity, 500 config missing.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scalytics/threadwatch/internal/bus"
	"github.com/scalytics/threadwatch/internal/config"
	"github.com/scalytics/threadwatch/internal/feedback"
	"github.com/scalytics/threadwatch/internal/ingest"
	"github.com/scalytics/threadwatch/internal/profile"
	"github.com/scalytics/threadwatch/internal/scheduler"
	"github.com/scalytics/threadwatch/internal/simulator"
	"github.com/scalytics/threadwatch/internal/slackapi"
	"github.com/scalytics/threadwatch/internal/store"
)

// Server holds every dependency the route handlers close over.
type Server struct {
	store     *store.Store
	bus       bus.EventBus
	ingestor  *ingest.Ingestor
	profiles  *profile.Manager
	slack     *slackapi.Client
	scheduler *scheduler.Scheduler
	simulator *simulator.Driver
	cfg       *config.Config
}

// New constructs a Server and its owned sub-components from a Store, an
// EventBus, and the loaded Config.
func New(s *store.Store, b bus.EventBus, slackClient *slackapi.Client, sched *scheduler.Scheduler, cfg *config.Config) *Server {
	ing := ingest.New(s, b)
	return &Server{
		store:     s,
		bus:       b,
		ingestor:  ing,
		profiles:  profile.New(s),
		slack:     slackClient,
		scheduler: sched,
		simulator: simulator.New(ing, b),
		cfg:       cfg,
	}
}

// Routes builds the full mux. Handlers are grouped by concern across
// routes_intake.go, routes_profiles.go, routes_digest.go,
// routes_slack.go, routes_schedule.go, and routes_sim.go.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /slack/events", ingest.HandleSlackEvents(s.ingestor, s.cfg.Slack.SigningSecret, s.cfg.Slack.VerifySignature))
	mux.Handle("POST /backfill", ingest.HandleBackfill(s.ingestor))
	mux.HandleFunc("POST /seed_mock", s.handleSeedMock)
	mux.HandleFunc("GET /queues/status", s.handleQueuesStatus)
	mux.HandleFunc("GET /raw_events", s.handleRawEvents)
	mux.HandleFunc("GET /threads", s.handleThreads)
	mux.HandleFunc("GET /items", s.handleItems)
	mux.HandleFunc("GET /embeddings/{thread_ts}", s.handleEmbedding)

	mux.HandleFunc("POST /roles", s.handleCreateRole)
	mux.HandleFunc("POST /phases", s.handleCreatePhase)
	mux.HandleFunc("POST /projects", s.handleCreateProject)
	mux.HandleFunc("PATCH /projects/{project_id}/phase", s.handleUpdateProjectPhase)
	mux.HandleFunc("POST /users", s.handleCreateUser)
	mux.HandleFunc("PATCH /users/{user_id}/role", s.handleUpdateUserRole)
	mux.HandleFunc("POST /users/{user_id}/projects/{project_id}", s.handleJoinProject)
	mux.HandleFunc("POST /projects/{project_id}/channels", s.handleAddProjectChannel)
	mux.HandleFunc("POST /users/{user_id}/channels", s.handleAddUserChannel)
	mux.HandleFunc("GET /projects/{project_id}/channels", s.handleListProjectChannels)
	mux.HandleFunc("GET /profiles/users/{user_id}", s.handleUserProfile)
	mux.HandleFunc("GET /profiles/projects/{project_id}", s.handleProjectProfile)

	mux.HandleFunc("GET /debug/query_vector", s.handleDebugQueryVector)
	mux.HandleFunc("GET /debug/retrieve", s.handleDebugRetrieve)
	mux.HandleFunc("GET /debug/rerank", s.handleDebugRerank)
	mux.HandleFunc("GET /digest", s.handleDigest)
	mux.HandleFunc("POST /feedback", s.handleFeedback)

	mux.HandleFunc("GET /slack/install", s.handleSlackInstall)
	mux.HandleFunc("GET /slack/oauth_redirect", s.handleSlackOAuthRedirect)

	mux.HandleFunc("POST /schedules", s.handleCreateSchedule)
	mux.HandleFunc("POST /schedules/{schedule_id}/run_now", s.handleRunNowSchedule)

	mux.HandleFunc("POST /sim/events", s.handleSimEvents)
	mux.HandleFunc("POST /simulate/start", s.handleSimulateStart)
	mux.HandleFunc("POST /simulate/stop", s.handleSimulateStop)
	mux.HandleFunc("GET /simulate/status", s.handleSimulateStatus)
	mux.HandleFunc("POST /simulate/reset", s.handleSimulateReset)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// statusFor maps a domain sentinel error to its spec'd HTTP status.
// Returns 0, false when err isn't one of the recognized sentinels.
// errors.Is is used throughout since slackapi wraps some sentinels with
// additional context via fmt.Errorf("%w: ...").
func statusFor(err error) (int, bool) {
	notFound := []error{
		profile.ErrUserNotFound, profile.ErrProjectNotFound, profile.ErrRoleNotFound, profile.ErrPhaseNotFound,
		feedback.ErrUserNotFound, feedback.ErrRoleNotFound, feedback.ErrEmbeddingNotFound,
		scheduler.ErrScheduleNotFound, slackapi.ErrWorkspaceNotFound,
	}
	for _, sentinel := range notFound {
		if errors.Is(err, sentinel) {
			return http.StatusNotFound, true
		}
	}
	badRequest := []error{
		profile.ErrRoleVectorMissing, feedback.ErrInvalidAction,
		slackapi.ErrOAuthFailed, slackapi.ErrInvalidOAuthPayload,
	}
	for _, sentinel := range badRequest {
		if errors.Is(err, sentinel) {
			return http.StatusBadRequest, true
		}
	}
	if errors.Is(err, slackapi.ErrMissingClientConfig) {
		return http.StatusInternalServerError, true
	}
	return 0, false
}

func writeDomainError(w http.ResponseWriter, err error) {
	if status, ok := statusFor(err); ok {
		writeError(w, status, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error")
}
