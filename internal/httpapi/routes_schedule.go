package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/scalytics/threadwatch/internal/store"
)

type scheduleCreate struct {
	TeamID    string `json:"team_id"`
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	TimeOfDay string `json:"time_of_day"`
	Timezone  string `json:"timezone"`
	IsEnabled *bool  `json:"is_enabled"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var body scheduleCreate
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if _, ok, err := s.store.FetchProject(body.ProjectID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "project_not_found")
		return
	}
	if _, ok, err := s.store.FetchUser(body.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	enabled := true
	if body.IsEnabled != nil {
		enabled = *body.IsEnabled
	}
	timezone := body.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	scheduleID := "sch-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	sch := store.Schedule{
		ScheduleID: scheduleID,
		TeamID:     body.TeamID,
		ProjectID:  body.ProjectID,
		UserID:     body.UserID,
		TimeOfDay:  body.TimeOfDay,
		Timezone:   timezone,
		IsEnabled:  enabled,
	}
	if err := s.store.InsertSchedule(sch); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, sch)
}

func (s *Server) handleRunNowSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := r.PathValue("schedule_id")
	result, err := s.scheduler.RunNow(r.Context(), scheduleID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
