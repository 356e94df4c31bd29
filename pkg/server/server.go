// Package server exposes the decision engine over HTTP: price refresh
// and lookup, the current recommendation, state, override CRUD, and a
// liveness probe.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/levenlabs/go-lflag"

	"github.com/wattwise/controller/pkg/adapter"
	"github.com/wattwise/controller/pkg/config"
	"github.com/wattwise/controller/pkg/log"
	"github.com/wattwise/controller/pkg/override"
	"github.com/wattwise/controller/pkg/storage"
	"github.com/wattwise/controller/pkg/tariff"
)

// Server wires the HTTP surface to the decision engine's components.
type Server struct {
	store     storage.Provider
	tariff    *tariff.Store
	adapter   adapter.Adapter
	overrides *override.Manager
	fetcher   tariff.Fetcher
	cfg       *config.Config
	clock     func() time.Time

	listenAddr     string
	requestTimeout time.Duration
	serverName     string
	httpServer     *http.Server
}

// Configured wires a Server from its already-constructed dependencies
// and registers the remaining server-only flags via lflag.
func Configured(store storage.Provider, tariffStore *tariff.Store, ad adapter.Adapter, overrides *override.Manager, fetcher tariff.Fetcher, cfg *config.Config) *Server {
	srv := &Server{
		store:      store,
		tariff:     tariffStore,
		adapter:    ad,
		overrides:  overrides,
		fetcher:    fetcher,
		cfg:        cfg,
		clock:      time.Now,
		serverName: "wattwise-controller",
	}

	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	lflag.Do(func() {
		srv.listenAddr = cfg.HTTPListenAddr
		srv.requestTimeout = cfg.APIRequestTimeout
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /prices/refresh", s.handlePricesRefresh)
	mux.HandleFunc("GET /prices/current", s.handlePricesCurrent)
	mux.HandleFunc("GET /recommendation/now", s.handleRecommendationNow)
	mux.HandleFunc("GET /state/current", s.handleStateCurrent)
	mux.HandleFunc("POST /schedule/update", s.handleScheduleUpdate)
	mux.HandleFunc("GET /schedule/status", s.handleScheduleStatus)
	mux.HandleFunc("GET /schedule/history", s.handleScheduleHistory)
	mux.HandleFunc("POST /manual-override/set", s.handleManualOverrideSet)
	mux.HandleFunc("GET /manual-override/status", s.handleManualOverrideStatus)
	mux.HandleFunc("POST /manual-override/clear", s.handleManualOverrideClear)
	mux.HandleFunc("POST /manual-override/clear-all", s.handleManualOverrideClearAll)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.revisionMiddleware(gziphandler.GzipHandler(s.timeoutMiddleware(mux)))
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	timeout := s.requestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("server: failed to write response", slog.Any("error", err))
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.store.Ping(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server: health check failed", "error", err)
		writeJSONError(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

var errInvalidQueryParam = errors.New("server: invalid query parameter")
