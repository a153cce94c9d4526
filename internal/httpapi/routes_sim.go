package httpapi

import (
	"net/http"

	"github.com/scalytics/threadwatch/internal/ingest"
	"github.com/scalytics/threadwatch/internal/simulator"
)

func (s *Server) handleSimEvents(w http.ResponseWriter, r *http.Request) {
	var env ingest.Envelope
	if !decodeJSON(r, &env) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	result, err := s.ingestor.Ingest(env, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingest_failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type simulateStartRequest struct {
	ScenarioID      string  `json:"scenario_id"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
	MaxEvents       int     `json:"max_events"`
	Loop            bool    `json:"loop"`
	RunID           string  `json:"run_id"`
}

func (s *Server) handleSimulateStart(w http.ResponseWriter, r *http.Request) {
	var body simulateStartRequest
	if !decodeJSON(r, &body) {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	if body.SpeedMultiplier <= 0 {
		body.SpeedMultiplier = 1.0
	}
	if err := s.simulator.Start(body.ScenarioID, body.SpeedMultiplier, body.MaxEvents, body.Loop, body.RunID); err != nil {
		if err == simulator.ErrAlreadyRunning {
			writeError(w, http.StatusBadRequest, "already_running")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.simulator.Status())
}

func (s *Server) handleSimulateStop(w http.ResponseWriter, r *http.Request) {
	s.simulator.Stop()
	writeJSON(w, http.StatusOK, s.simulator.Status())
}

func (s *Server) handleSimulateStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.simulator.Status())
}

func (s *Server) handleSimulateReset(w http.ResponseWriter, r *http.Request) {
	s.simulator.Reset()
	writeJSON(w, http.StatusOK, s.simulator.Status())
}
