package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signalworks/sibyl/internal/signals"
)

// TurnRequest is the inbound turn contract.
type TurnRequest struct {
	TurnText   string                     `json:"turn_text"`
	Behavioral *signals.BehavioralPayload `json:"behavioral"`
}

func (s *Server) processTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing conversation id")
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q := s.engine.ProcessTurn(r.Context(), id, req.TurnText, req.Behavioral)
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) endConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := s.engine.EndConversation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) conversationSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, ok := s.engine.Conversation(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id":  conv.ID,
		"turns":            conv.Turns,
		"collected_fields": conv.Profile.Fields(),
		"signals":          conv.Signals,
	})
}

func (s *Server) conversationHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	records, err := s.engine.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"history":         records,
	})
}

func (s *Server) syncToCRM(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := s.engine.SyncToCRM(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// RetrainRequest points the trainer at a historical-outcomes file.
type RetrainRequest struct {
	Path string `json:"path"`
}

func (s *Server) retrain(w http.ResponseWriter, r *http.Request) {
	var req RetrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "missing training data path")
		return
	}

	snap, err := s.engine.RetrainFromFile(r.Context(), req.Path)
	if err != nil {
		s.logger.Error("retrain failed", "path", req.Path, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":    snap.Version,
		"metrics":    snap.Metrics,
		"importance": snap.Importance,
	})
}

func (s *Server) modelInfo(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.ModelSnapshot()
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"loaded":   false,
			"degraded": true,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"loaded":         true,
		"version":        snap.Version,
		"schema_version": snap.SchemaVersion,
		"trained_at":     snap.TrainedAt,
		"metrics":        snap.Metrics,
	})
}
