package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// GenerateFunc produces a fresh configuration on every refresh.
type GenerateFunc func(ctx context.Context) (*Artifacts, error)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Routers     int    `json:"routers"`
	LastRefresh string `json:"lastRefresh,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Server serves the latest dynamic configuration to traefik's HTTP provider at
// /api/config, and its own state at /health.
type Server struct {
	logger   *zap.Logger
	generate GenerateFunc

	mu        sync.RWMutex
	config    []byte
	routers   int
	refreshed time.Time
	lastErr   error
}

// NewServer creates a config Server.
func NewServer(logger *zap.Logger, generate GenerateFunc) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:   logger,
		generate: generate,
	}
}

// Refresh regenerates the configuration. A failed refresh keeps serving the
// previous configuration.
func (s *Server) Refresh(ctx context.Context) error {
	artifacts, err := s.generate(ctx)
	if err == nil {
		var data []byte
		data, err = json.Marshal(artifacts.Dynamic)
		if err == nil {
			s.mu.Lock()
			s.config = data
			s.routers = len(artifacts.Dynamic.HTTP.Routers)
			s.refreshed = time.Now().UTC()
			s.lastErr = nil
			s.mu.Unlock()
			s.logger.Debug("Refreshed traefik configuration", zap.Int("routers", len(artifacts.Dynamic.HTTP.Routers)))
			return nil
		}
	}

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		response := HealthResponse{Status: "ok", Routers: s.routers}
		if !s.refreshed.IsZero() {
			response.LastRefresh = s.refreshed.Format(time.RFC3339)
		}
		if s.lastErr != nil {
			response.Error = s.lastErr.Error()
		}
		ready := s.config != nil
		s.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if !ready {
			response.Status = "pending"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	})

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		config, refreshed := s.config, s.refreshed
		s.mu.RUnlock()

		if config == nil {
			http.Error(w, "configuration not generated yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Last-Modified", refreshed.Format(http.TimeFormat))
		w.Write(config)
	})

	return mux
}

// Run serves on addr and refreshes the configuration every interval until ctx is done.
func (s *Server) Run(ctx context.Context, addr string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", interval)
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.Error("Failed to generate traefik configuration", zap.Error(err))
	}

	server := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()
	s.logger.Info("Config server started",
		zap.String("addr", addr),
		zap.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errc:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Error("Failed to refresh traefik configuration, serving previous", zap.Error(err))
			}
		}
	}
}
