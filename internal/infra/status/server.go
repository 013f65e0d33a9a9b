// Package status serves the daemon's health, state and metrics over HTTP.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voicetype/internal/domain"
)

type StateReporter interface {
	State() domain.RecordingState
	Pending() int
}

type Info struct {
	TriggerKey string   `json:"trigger_key"`
	Devices    []string `json:"devices"`
	WhisperURL string   `json:"whisper_url"`
}

type Server struct {
	addr        string
	server      *http.Server
	session     StateReporter
	info        Info
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	started     time.Time
}

func NewServer(addr string, session StateReporter, metrics *Metrics, info Info, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		session:     session,
		info:        info,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(60, time.Minute),
		started:     time.Now(),
	}
	s.mux.HandleFunc("GET /status", s.rateLimiter.Middleware(s.handleStatus))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("status server starting", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server error", "error", err)
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

type statusResponse struct {
	State   string `json:"state"`
	Pending int    `json:"pending"`
	Uptime  string `json:"uptime"`
	Info
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State:   s.session.State().String(),
		Pending: s.session.Pending(),
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Info:    s.info,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("writing status", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}
