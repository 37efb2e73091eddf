// Package status serves liveness and loop statistics over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/enriquegit/edge-person-detector/internal/report"
	"github.com/enriquegit/edge-person-detector/internal/sampler"
)

// Source is the agent being observed.
type Source interface {
	State() sampler.State
	Stats() sampler.Stats
	Uptime() time.Duration
	PublisherStats() (report.PublisherStats, bool)
}

// Health is the /health response
type Health struct {
	Status        string `json:"status"` // "alive", "unhealthy"
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// StatsResponse is the /stats response
type StatsResponse struct {
	State         string                 `json:"state"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Loop          sampler.Stats          `json:"loop"`
	MQTT          *report.PublisherStats `json:"mqtt,omitempty"`
}

// Server exposes /health and /stats
type Server struct {
	src    Source
	server *http.Server
}

// NewServer creates a server listening on addr once started
func NewServer(addr string, src Source) *Server {
	s := &Server{src: src}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	return r
}

// Start binds the address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}

	slog.Info("status: server listening",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/health", "/stats"},
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status: server failed", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth is a liveness check; it fails only once init has failed
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.src.State()
	resp := Health{
		Status:        "alive",
		State:         state.String(),
		UptimeSeconds: int64(s.src.Uptime().Seconds()),
	}

	code := http.StatusOK
	if state == sampler.StateFailed {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	resp := StatsResponse{
		State:         s.src.State().String(),
		UptimeSeconds: int64(s.src.Uptime().Seconds()),
		Loop:          s.src.Stats(),
	}
	if ps, ok := s.src.PublisherStats(); ok {
		resp.MQTT = &ps
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("status: failed to write response", "error", err)
	}
}
