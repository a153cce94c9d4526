package httpapi

import (
	"net/http"

	"github.com/scalytics/threadwatch/internal/digest"
	"github.com/scalytics/threadwatch/internal/feedback"
)

// channelSuperset reports whether userChannels contains every channel in
// projectChannels. An empty projectChannels set never authorizes — a
// project with no mapped channels can't be read by anyone.
func channelSuperset(userChannels, projectChannels []string) bool {
	if len(projectChannels) == 0 {
		return false
	}
	have := make(map[string]bool, len(userChannels))
	for _, c := range userChannels {
		have[c] = true
	}
	for _, c := range projectChannels {
		if !have[c] {
			return false
		}
	}
	return true
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	projectID := r.URL.Query().Get("project_id")
	n := queryLimit(r, 10)

	if _, ok, err := s.store.FetchUser(userID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	if _, ok, err := s.store.FetchProject(projectID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}

	projectChannels, err := s.store.FetchProjectChannels(projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	userChannels, err := s.store.FetchUserChannels(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if !channelSuperset(userChannels, projectChannels) {
		writeError(w, http.StatusForbidden, "not_authorized_for_project_channels")
		return
	}

	result, err := digest.Build(s.store, userID, projectID, n, s.queryWeights(), s.cfg.Retrieval.WindowHours)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type feedbackRequest struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	ThreadTS  string `json:"thread_ts"`
	Action    string `json:"action"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackRequest
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	cfg := feedback.Config{
		EmbedAlpha: s.cfg.Feedback.EmbedAlpha,
		DecayDays:  s.cfg.Feedback.DecayDays,
		DecayBlend: s.cfg.Feedback.DecayBlend,
	}
	result, err := feedback.Apply(s.store, body.UserID, body.ProjectID, body.ThreadTS, body.Action, cfg)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interaction_id":    result.InteractionID,
		"user_id":           result.UserID,
		"project_id":        result.ProjectID,
		"thread_ts":         result.ThreadTS,
		"action":            result.Action,
		"update_summary":    "Updated user vector " + result.Direction + " item embedding.",
		"user_vector_norm":  result.NewNorm,
	})
}
