package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/scalytics/threadwatch/internal/profile"
	"github.com/scalytics/threadwatch/internal/rerank"
	"github.com/scalytics/threadwatch/internal/retrieval"
)

func decodeJSON(r *http.Request, dst any) bool {
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func (s *Server) queryWeights() profile.QueryVectorWeights {
	return profile.QueryVectorWeights{
		Role:  s.cfg.Query.WeightRole,
		User:  s.cfg.Query.WeightUser,
		Phase: s.cfg.Query.WeightPhase,
	}
}

type roleCreate struct {
	RoleID      string `json:"role_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var body roleCreate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	vector, err := s.profiles.CreateRole(body.RoleID, body.Name, body.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role_id": body.RoleID, "vector_dim": len(vector)})
}

type phaseCreate struct {
	PhaseKey    string `json:"phase_key"`
	Description string `json:"description"`
}

func (s *Server) handleCreatePhase(w http.ResponseWriter, r *http.Request) {
	var body phaseCreate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	vector, err := s.profiles.CreatePhase(body.PhaseKey, body.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"phase_key": body.PhaseKey, "vector_dim": len(vector)})
}

type projectCreate struct {
	ProjectID    string `json:"project_id"`
	Name         string `json:"name"`
	CurrentPhase string `json:"current_phase"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var body projectCreate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if err := s.profiles.CreateProject(body.ProjectID, body.Name, body.CurrentPhase); err != nil {
		if err == profile.ErrPhaseNotFound {
			writeError(w, http.StatusBadRequest, "unknown_phase_key")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"project_id": body.ProjectID})
}

type phaseUpdate struct {
	PhaseKey string `json:"phase_key"`
}

func (s *Server) handleUpdateProjectPhase(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	var body phaseUpdate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if err := s.profiles.UpdateProjectPhase(projectID, body.PhaseKey); err != nil {
		if err == profile.ErrPhaseNotFound {
			writeError(w, http.StatusBadRequest, "unknown_phase_key")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"project_id": projectID, "current_phase": body.PhaseKey})
}

type userCreate struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	RoleID string `json:"role_id"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userCreate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	vector, roleID, err := s.profiles.CreateUser(body.UserID, body.Name, body.RoleID)
	if err != nil {
		if err == profile.ErrRoleNotFound {
			writeError(w, http.StatusBadRequest, "unknown_role_id")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": body.UserID, "role_id": roleID, "vector_dim": len(vector)})
}

type roleUpdate struct {
	RoleID string `json:"role_id"`
}

func (s *Server) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	var body roleUpdate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	vector, err := s.profiles.UpdateUserRole(userID, body.RoleID)
	if err != nil {
		if err == profile.ErrRoleNotFound {
			writeError(w, http.StatusBadRequest, "unknown_role_id")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "role_id": body.RoleID, "vector_dim": len(vector)})
}

func (s *Server) handleJoinProject(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	projectID := r.PathValue("project_id")
	if err := s.profiles.AddUserToProject(userID, projectID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "project_id": projectID})
}

type channelMapping struct {
	ChannelID string `json:"channel_id"`
}

func (s *Server) handleAddProjectChannel(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if _, ok, err := s.store.FetchProject(projectID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	var body channelMapping
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if err := s.store.AddProjectChannel(projectID, body.ChannelID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"project_id": projectID, "channel_id": body.ChannelID})
}

func (s *Server) handleAddUserChannel(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if _, ok, err := s.store.FetchUser(userID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	var body channelMapping
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if err := s.store.AddUserChannel(userID, body.ChannelID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID, "channel_id": body.ChannelID})
}

func (s *Server) handleListProjectChannels(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	if _, ok, err := s.store.FetchProject(projectID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	channels, err := s.store.FetchProjectChannels(projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"project_id": projectID, "channels": channels})
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	prof, err := s.profiles.GetUserProfile(userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (s *Server) handleProjectProfile(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("project_id")
	prof, err := s.profiles.GetProjectProfile(projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

// first20 truncates a vector for debug views, per spec's "first 20
// dims only" diagnostic output rule.
func first20(v []float64) []float64 {
	if len(v) > 20 {
		return v[:20]
	}
	return v
}

func parseLabelFilter(r *http.Request) []string {
	raw := r.URL.Query().Get("labels")
	if raw == "" {
		return nil
	}
	var out []string
	for _, label := range strings.Split(raw, ",") {
		label = strings.ToUpper(strings.TrimSpace(label))
		if label != "" {
			out = append(out, label)
		}
	}
	return out
}

func (s *Server) handleDebugQueryVector(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	projectID := r.URL.Query().Get("project_id")
	result, err := s.profiles.GetQueryVector(userID, projectID, s.queryWeights())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":               userID,
		"project_id":            projectID,
		"weights":               result.Weights,
		"role_id":               result.RoleID,
		"phase_key":             result.PhaseKey,
		"q_dim":                 len(result.Vector),
		"q_vector":              first20(result.Vector),
		"component_norms":       result.ComponentNorms,
		"component_top_indices": result.ComponentTopIndices,
	})
}

func (s *Server) handleDebugRetrieve(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	projectID := r.URL.Query().Get("project_id")
	k := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("k")); err == nil && v > 0 {
		k = v
	}
	labelFilter := parseLabelFilter(r)

	result, err := s.profiles.GetQueryVector(userID, projectID, s.queryWeights())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	candidates, err := retrieval.LoadCandidates(s.store, retrieval.Filter{
		ProjectID:   projectID,
		LabelFilter: labelFilter,
		WindowHours: s.cfg.Retrieval.WindowHours,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	topK := retrieval.TopK(result.Vector, candidates, k)

	type resultView struct {
		ThreadTS  string   `json:"thread_ts"`
		Score     float64  `json:"score"`
		Urgency   float64  `json:"urgency"`
		Title     string   `json:"title"`
		Labels    []string `json:"labels"`
		UpdatedAt float64  `json:"updated_at"`
	}
	views := make([]resultView, len(topK))
	for i, c := range topK {
		views[i] = resultView{ThreadTS: c.ThreadTS, Score: c.SimScore, Urgency: c.Urgency, Title: c.Title, Labels: c.Labels, UpdatedAt: c.UpdatedAt}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "project_id": projectID, "k": k, "results": views})
}

func (s *Server) handleDebugRerank(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	projectID := r.URL.Query().Get("project_id")
	n := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("n")); err == nil && v > 0 {
		n = v
	}
	labelFilter := parseLabelFilter(r)

	result, err := s.profiles.GetQueryVector(userID, projectID, s.queryWeights())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	candidates, err := retrieval.LoadCandidates(s.store, retrieval.Filter{
		ProjectID:   projectID,
		LabelFilter: labelFilter,
		WindowHours: s.cfg.Retrieval.WindowHours,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	topK := retrieval.TopK(result.Vector, candidates, 50)
	ranked, err := rerank.Rerank(s.store, topK, userID, n, s.cfg.Retrieval.WindowHours)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].FinalScore > ranked[j].FinalScore })

	type breakdownView struct {
		Sim              float64 `json:"sim"`
		Urgency          float64 `json:"urgency"`
		Ownership        float64 `json:"ownership"`
		Recency          float64 `json:"recency"`
		DiversityPenalty float64 `json:"diversity_penalty"`
		BaseScore        float64 `json:"base_score"`
	}
	type resultView struct {
		ThreadTS       string        `json:"thread_ts"`
		FinalScore     float64       `json:"final_score"`
		ScoreBreakdown breakdownView `json:"score_breakdown"`
		ForceIncluded  bool          `json:"force_included"`
		Title          string        `json:"title"`
		Labels         []string      `json:"labels"`
		UpdatedAt      float64       `json:"updated_at"`
	}
	views := make([]resultView, len(ranked))
	for i, item := range ranked {
		views[i] = resultView{
			ThreadTS:   item.ThreadTS,
			FinalScore: item.FinalScore,
			ScoreBreakdown: breakdownView{
				Sim: item.SimScore, Urgency: item.Urgency, Ownership: item.Ownership,
				Recency: item.Recency, DiversityPenalty: item.DiversityPenalty, BaseScore: item.BaseScore,
			},
			ForceIncluded: item.ForceIncluded,
			Title:         item.Title,
			Labels:        item.Labels,
			UpdatedAt:     item.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "project_id": projectID, "n": n, "results": views})
}
