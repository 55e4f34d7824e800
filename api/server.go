// Package api exposes a small HTTP control surface over a running
// simulation: status, pause/resume/stop, a world snapshot, and a
// websocket that streams status updates.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/chuanyeli/simclass/sim"
)

const statusStreamInterval = 500 * time.Millisecond

// Server wraps one simulation with an HTTP listener.
type Server struct {
	simulation *sim.Simulation
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *logrus.Entry
}

// NewServer builds the server for one simulation.
func NewServer(addr string, simulation *sim.Simulation) *Server {
	s := &Server{
		simulation: simulation,
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:     logrus.WithField("component", "api"),
	}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/status", s.handleStatus)
	router.Get("/world", s.handleWorld)
	router.Post("/pause", s.handlePause)
	router.Post("/resume", s.handleResume)
	router.Post("/stop", s.handleStop)
	router.Get("/ws", s.handleWebsocket)
	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// Start listens in a new goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Infof("control surface on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("listen: %v", err)
		}
	}()
}

// Shutdown stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.simulation.Status())
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.simulation.World().Snapshot())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.simulation.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"state": "paused"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.simulation.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"state": "running"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.simulation.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"state": "stopping"})
}

// handleWebsocket streams status snapshots until the client hangs up or
// the run ends.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugf("upgrade: %v", err)
		return
	}
	defer conn.Close()
	ticker := time.NewTicker(statusStreamInterval)
	defer ticker.Stop()
	for range ticker.C {
		status := s.simulation.Status()
		if err := conn.WriteJSON(status); err != nil {
			return
		}
		if running, ok := status["running"].(bool); ok && !running {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithField("component", "api").Debugf("encode response: %v", err)
	}
}
