package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relayhub/relay-gateway/internal/catalog"
	"github.com/relayhub/relay-gateway/internal/config"
	"github.com/relayhub/relay-gateway/internal/dispatch"
	"github.com/relayhub/relay-gateway/internal/metrics"
	"github.com/relayhub/relay-gateway/internal/routing"
	"github.com/relayhub/relay-gateway/internal/session"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	policy     *routing.Policy
	dispatcher *dispatch.Dispatcher
	catalog    *catalog.Catalog
	sessions   *session.Store
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// ChatRequest is the inbound chat request body.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// ChatResponse is the structured chat response.
type ChatResponse struct {
	Model       string               `json:"model"`
	Reasoning   string               `json:"reasoning"`
	Performance dispatch.Performance `json:"performance"`
	Reply       string               `json:"reply"`
}

// LegacyChatResponse is the pre-formatted single-string response shape.
type LegacyChatResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body sent on request-level failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// ModelInfo is one catalog entry in the model listing.
type ModelInfo struct {
	ID               string `json:"id"`
	Throughput       string `json:"throughput"`
	TimeToFirstToken string `json:"timeToFirstToken"`
	TokensPerSecond  string `json:"tokensPerSecond"`
	Cost             string `json:"cost"`
}

// HistoryResponse is the session history listing.
type HistoryResponse struct {
	UserID   string                `json:"user_id"`
	Messages []session.ChatMessage `json:"messages"`
}

// New creates a new HTTP server
func New(cfg *config.Config, policy *routing.Policy, dispatcher *dispatch.Dispatcher, cat *catalog.Catalog, sessions *session.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		policy:     policy,
		dispatcher: dispatcher,
		catalog:    cat,
		sessions:   sessions,
		logger:     logger,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/chat", s.instrument("/api/chat", s.chatHandler))
	mux.HandleFunc("/api/v1/models", s.listModelsHandler)
	mux.HandleFunc("/api/v1/history", s.historyHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// instrument wraps a handler with request count and duration metrics.
func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// chatHandler decodes the inbound message, runs routing then dispatch, and
// encodes the outbound response in the configured shape.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = "web"
	}

	s.sessions.AddUserMessage(userID, req.Message)

	decision := s.policy.Route(r.Context(), req.Message)
	res, err := s.dispatcher.Dispatch(r.Context(), decision.Model, req.Message)
	if err != nil {
		s.logger.Error("completion failed", "model", decision.Model, "error", err)
		s.sessions.AddAssistantMessage(userID, dispatch.FailureReply, "", "", nil)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: dispatch.FailureReply})
		return
	}

	perf := res.Performance
	s.sessions.AddAssistantMessage(userID, res.Reply, res.Model, decision.Reasoning, &perf)

	if s.cfg.Server.LegacyResponses {
		writeJSON(w, http.StatusOK, LegacyChatResponse{
			Message: fmt.Sprintf("Model: %s / Reply: %s", res.Model, res.Reply),
		})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Model:       res.Model,
		Reasoning:   decision.Reasoning,
		Performance: res.Performance,
		Reply:       res.Reply,
	})
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// listModelsHandler lists the model catalog
func (s *Server) listModelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list := []ModelInfo{}
	for _, e := range s.catalog.Entries() {
		list = append(list, ModelInfo{
			ID:               e.ID,
			Throughput:       e.Throughput,
			TimeToFirstToken: e.TimeToFirstToken,
			TokensPerSecond:  e.TokensPerSecond,
			Cost:             e.Cost,
		})
	}
	writeJSON(w, http.StatusOK, list)
}

// historyHandler returns or resets a user's in-memory session
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "Missing query parameter user_id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, HistoryResponse{
			UserID:   userID,
			Messages: s.sessions.History(userID),
		})
	case http.MethodDelete:
		s.sessions.Reset(userID)
		writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
