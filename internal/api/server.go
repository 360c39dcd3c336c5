package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalworks/sibyl/internal/engine"
)

type Server struct {
	router *chi.Mux
	port   int
	engine *engine.Engine
	logger *slog.Logger
}

func NewServer(port int, eng *engine.Engine, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		engine: eng,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/sibyl/status", s.status)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1/conversations/{id}", func(r chi.Router) {
		r.Post("/turns", s.processTurn)
		r.Post("/end", s.endConversation)
		r.Post("/sync", s.syncToCRM)
		r.Get("/", s.conversationSummary)
		r.Get("/history", s.conversationHistory)
	})

	router.Post("/api/v1/model/retrain", s.retrain)
	router.Get("/api/v1/model", s.modelInfo)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	snap := "none"
	if sn := s.engine.ModelSnapshot(); sn != nil {
		snap = sn.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"agent":    "sibyl",
		"status":   "serving",
		"snapshot": snap,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
