// Package server handles the HTTP API for the suggest service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ASHISH26940/suggestd/internal/config"
	"github.com/ASHISH26940/suggestd/internal/metrics"
	"github.com/ASHISH26940/suggestd/internal/refresh"
	"github.com/ASHISH26940/suggestd/internal/store"
	"github.com/ASHISH26940/suggestd/internal/translator"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// RequestHeaderID carries the id assigned to each request.
const RequestHeaderID = "X-Request-Id"

// RequestHandler is the suggest pipeline the server delegates to.
type RequestHandler interface {
	Handle(req translator.Request) translator.Response
}

// Dataset is the read side of the store, as far as the server reports on it.
// By depending on interfaces, we can easily mock the collaborators in our tests.
type Dataset interface {
	Read() *store.Snapshot
}

// StatsSource provides the process counters, as a summary and in the
// Prometheus exposition format.
type StatsSource interface {
	Snapshot() metrics.Stats
	Handler() http.Handler
}

// Refresher is the scheduler as seen by the operational endpoints.
type Refresher interface {
	Refresh(ctx context.Context) (refresh.Result, error)
	Status() refresh.Status
}

// Server is the HTTP server for the suggest service.
type Server struct {
	cfg          *config.Config
	handler      RequestHandler
	dataset      Dataset
	stats        StatsSource
	refresher    Refresher
	logger       *slog.Logger
	limiter      *rate.Limiter
	router       *mux.Router
	chain        http.Handler
	serverHeader string
}

// New creates a new Server instance.
func New(cfg *config.Config, h RequestHandler, ds Dataset, stats StatsSource, r Refresher, logger *slog.Logger, serverHeader string) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	s := &Server{
		cfg:          cfg,
		handler:      h,
		dataset:      ds,
		stats:        stats,
		refresher:    r,
		logger:       logger,
		router:       mux.NewRouter().SkipClean(true),
		serverHeader: serverHeader,
	}
	if rps := cfg.Limits.RequestsPerSecond; rps > 0 {
		burst := cfg.Limits.Burst
		if burst <= 0 {
			burst = max(1, int(rps))
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	s.registerRoutes()
	s.chain = s.withServerHeader(s.logRequests(s.limit(s.router)))
	return s
}

// ServeHTTP makes our Server a standard http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.chain.ServeHTTP(w, r)
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
		close(shutdownDone)
	}()

	s.logger.Info("listening", "addr", listener.Addr().String(), "endpoint", s.cfg.Endpoint)
	serveErr := server.Serve(listener)
	if errors.Is(serveErr, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return serveErr
}

// registerRoutes sets up the HTTP routing for the server.
// The operational routes come first; everything else goes to the suggest
// pipeline, which answers unknown paths with its own route error.
func (s *Server) registerRoutes() {
	s.router.Path("/healthz").Methods(http.MethodGet).HandlerFunc(s.handleHealth)
	s.router.Path("/stats").Methods(http.MethodGet).HandlerFunc(s.handleStats)
	s.router.Path("/metrics").Methods(http.MethodGet).Handler(s.stats.Handler())
	if s.cfg.Admin.ReloadEnabled {
		s.router.Path("/admin/reload").Methods(http.MethodPost).HandlerFunc(s.handleReload)
	}
	s.router.PathPrefix("/").HandlerFunc(s.handleSuggest)
}

// handleSuggest adapts an HTTP request to the translator and writes its response.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxBodyBytes))
	if err != nil {
		// An unreadable or oversized body is not JSON input.
		s.logger.Debug("read body", "error", err, "request_id", w.Header().Get(RequestHeaderID))
		body = nil
	}

	resp := s.handler.Handle(translator.Request{
		Method: r.Method,
		Target: requestTarget(r),
		Body:   body,
	})

	status := http.StatusOK
	if resp.Status == translator.StatusBadRequest {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// requestTarget is the target exactly as the client sent it, query string included.
func requestTarget(r *http.Request) string {
	if r.RequestURI != "" {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.dataset.Read().Version(),
	})
}

type statsResponse struct {
	Dataset datasetStats   `json:"dataset"`
	Refresh refresh.Status `json:"refresh"`
	Metrics metrics.Stats  `json:"metrics"`
}

type datasetStats struct {
	Version  uint64    `json:"version"`
	Records  int       `json:"records"`
	Source   string    `json:"source,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.dataset.Read()
	writeJSON(w, http.StatusOK, statsResponse{
		Dataset: datasetStats{
			Version:  snap.Version(),
			Records:  snap.Len(),
			Source:   snap.Source(),
			LoadedAt: snap.LoadedAt(),
		},
		Refresh: s.refresher.Status(),
		Metrics: s.stats.Snapshot(),
	})
}

// handleReload runs a refresh cycle now and reports its outcome.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.refresher.Refresh(r.Context())
	if err != nil {
		s.logger.Warn("manual reload failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cycle":    res.Cycle,
		"outcome":  res.Outcome.String(),
		"version":  res.Version,
		"records":  res.Records,
		"duration": res.Duration.String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "JSON serialization error", http.StatusInternalServerError)
		return
	}
	body = append(body, '\n')
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) withServerHeader(next http.Handler) http.Handler {
	if s.serverHeader == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverHeader)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestHeaderID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestHeaderID, id)

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rw.status,
			"duration", time.Since(start), "request_id", id)
	})
}

func (s *Server) limit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
