package apihttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"moviescout/internal/catalog"
	"moviescout/internal/domain"
)

type CatalogService interface {
	Search(ctx context.Context, request domain.SearchRequest) (domain.SearchResponse, error)
	Diagnostics() []domain.CapabilityDiagnostics
}

type SessionRegistry interface {
	Acquire(id string) *catalog.Session
	Get(id string) (*catalog.Session, error)
}

type Server struct {
	catalog  CatalogService
	sessions SessionRegistry
	logger   *slog.Logger
	wsHub    *wsHub

	rateLimitRPS   float64
	rateLimitBurst int
}

const (
	maxTerms      = 20
	maxTermLength = 200
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithSessions(sessions SessionRegistry) ServerOption {
	return func(s *Server) {
		s.sessions = sessions
	}
}

// WithRateLimit sets the inbound request limit. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog:        catalogService,
		logger:         slog.Default(),
		rateLimitRPS:   50,
		rateLimitBurst: 100,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.wsHub = newWSHub(server.logger)
	go server.wsHub.run()
	return server
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.wsHub.Close()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/search/stream", s.handleSearchStream)
	mux.HandleFunc("/search/health", s.handleSearchHealth)
	mux.HandleFunc("/sessions/", s.handleSessions)
	mux.HandleFunc("/ws", s.handleWS)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "moviescout",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return requestIDMiddleware(recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	request, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	response, err := s.catalog.Search(r.Context(), request)
	if err != nil {
		s.logger.Warn("search request failed",
			slog.Any("terms", request.Terms),
			slog.String("error", err.Error()),
		)
		s.writeCatalogError(w, err)
		return
	}

	s.logRun(response.Run)
	s.wsHub.Broadcast("run", response.Run)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/stream" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming is not supported")
		return
	}

	request, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := writeSSEEvent(w, flusher, "bootstrap", map[string]any{
		"terms":  request.Terms,
		"status": "started",
	}); err != nil {
		return // Client disconnected
	}

	type searchResult struct {
		response domain.SearchResponse
		err      error
	}
	reqCtx := r.Context()
	events := make(chan domain.StageEvent, 16)
	done := make(chan searchResult, 1)
	ctx := catalog.ContextWithObserver(reqCtx, catalog.ObserverFunc(func(event domain.StageEvent) {
		select {
		case events <- event:
		case <-reqCtx.Done():
		}
	}))
	go func() {
		response, err := s.catalog.Search(ctx, request)
		done <- searchResult{response: response, err: err}
	}()

	for {
		select {
		case <-reqCtx.Done():
			return // Client disconnected
		case event := <-events:
			if err := writeSSEEvent(w, flusher, "stage", event); err != nil {
				return
			}
		case result := <-done:
			for drained := false; !drained; {
				select {
				case event := <-events:
					_ = writeSSEEvent(w, flusher, "stage", event)
				default:
					drained = true
				}
			}
			if result.err != nil {
				_ = writeSSEEvent(w, flusher, "error", map[string]any{"message": result.err.Error()})
			} else {
				s.logRun(result.response.Run)
				s.wsHub.Broadcast("run", result.response.Run)
				_ = writeSSEEvent(w, flusher, "result", result.response)
			}
			_ = writeSSEEvent(w, flusher, "done", map[string]any{"final": true})
			return
		}
	}
}

func (s *Server) handleSearchHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.CapabilityDiagnostics{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": s.catalog.Diagnostics()})
}

// handleSessions serves /sessions/{id}/refresh and /sessions/{id}/view.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "not_found", "sessions are not enabled")
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/sessions/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		http.NotFound(w, r)
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "refresh":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleSessionRefresh(w, r, id)
	case "view":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleSessionView(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSessionRefresh(w http.ResponseWriter, r *http.Request, id string) {
	terms, err := parseTerms(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	noCache := parseOptionalBool(r.URL.Query().Get("nocache")) || parseOptionalBool(r.URL.Query().Get("noCache"))

	session := s.sessions.Acquire(id)
	report, err := session.Refresh(r.Context(), terms, noCache)
	if err != nil {
		s.logger.Info("session refresh did not complete",
			slog.String("session", id),
			slog.String("error", err.Error()),
		)
		s.writeCatalogError(w, err)
		return
	}
	summary := report.Summary()
	s.logRun(summary)
	s.wsHub.Broadcast("run", summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSessionView(w http.ResponseWriter, r *http.Request, id string) {
	session, err := s.sessions.Get(id)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	criteria, err := parseFilterCriteria(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sortKey := domain.NormalizeSortKey(r.URL.Query().Get("sortBy"))
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": session.Generation(),
		"view":       session.View(criteria, sortKey),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.wsHub,
		conn: conn,
		send: make(chan []byte, 64),
	}
	if !s.wsHub.add(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	var cfgErr *domain.ConfigError
	switch {
	case errors.Is(err, catalog.ErrNoTerms):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, catalog.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrSuperseded):
		writeError(w, http.StatusConflict, "superseded", err.Error())
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusServiceUnavailable, "misconfigured", err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
	}
}

func (s *Server) logRun(run domain.RunSummary) {
	failedTerms := 0
	for _, status := range run.Searches {
		if !status.OK {
			failedTerms++
		}
	}
	s.logger.Info("search completed",
		slog.String("runId", run.RunID),
		slog.Any("terms", run.Terms),
		slog.Int("resolved", run.Resolved),
		slog.Int64("elapsedMs", run.ElapsedMS),
		slog.Int("failedTerms", failedTerms),
		slog.Int("failedDetails", len(run.Failed)),
	)
	if run.Empty {
		s.logger.Warn("search produced no records",
			slog.String("runId", run.RunID),
			slog.String("reason", string(run.EmptyReason)),
		)
	}
}
