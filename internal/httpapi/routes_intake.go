package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/scalytics/threadwatch/internal/bus"
)

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *Server) handleSeedMock(w http.ResponseWriter, r *http.Request) {
	results, err := s.simulator.SeedMock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "seed_mock_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "seeded", "results": results})
}

type queueStatusView struct {
	Name             string  `json:"name"`
	Size             int     `json:"size"`
	ProcessedCount   int     `json:"processed_count"`
	LastProcessedAt  float64 `json:"last_processed_at"`
}

func (s *Server) handleQueuesStatus(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.store.FetchMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	views := make([]queueStatusView, 0, len(bus.Queues))
	for _, name := range bus.Queues {
		m := metrics[name]
		views = append(views, queueStatusView{
			Name:            name,
			Size:            s.bus.QueueSize(name),
			ProcessedCount:  m.ProcessedCount,
			LastProcessedAt: m.LastProcessedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type rawEventView struct {
	EventID    string `json:"event_id"`
	ReceivedAt float64 `json:"received_at"`
	Payload    any    `json:"payload"`
}

func (s *Server) handleRawEvents(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.FetchRawEvents(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	views := make([]rawEventView, len(rows))
	for i, row := range rows {
		var payload any
		_ = json.Unmarshal([]byte(row.PayloadJSON), &payload)
		views[i] = rawEventView{EventID: row.EventID, ReceivedAt: row.ReceivedAt, Payload: payload}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.FetchThreads(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.FetchItems(queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	threadTS := r.PathValue("thread_ts")
	emb, ok, err := s.store.FetchEmbedding(threadTS)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"thread_ts": threadTS, "dim": 0, "vector": []float64{}, "updated_at": 0.0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thread_ts": emb.ThreadTS, "dim": emb.Dim, "vector": emb.Vector, "updated_at": emb.UpdatedAt})
}
