// Package server exposes the meokten agent and dataset over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meokten/meokten/internal/metrics"
	"github.com/meokten/meokten/internal/store"
	"github.com/meokten/meokten/pkg/agent"
	"github.com/meokten/meokten/pkg/sqltool"
)

// Runner runs one agent conversation end to end.
type Runner interface {
	Run(ctx context.Context, question string) (*agent.RunResult, error)
}

// Catalog is the read surface of the restaurant store the browse and
// health endpoints need.
type Catalog interface {
	Restaurants(ctx context.Context) ([]sqltool.Row, error)
	MenuItems(ctx context.Context, restaurantID int64) ([]store.MenuItem, error)
	Ping(ctx context.Context) error
}

// Server wires the agent and store into an HTTP handler.
type Server struct {
	log     *slog.Logger
	cfg     Config
	runner  Runner
	catalog Catalog
}

// New creates a Server.
func New(cfg Config, runner Runner, catalog Catalog) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, cfg: cfg, runner: runner, catalog: catalog}
}

// Router builds the chi router with middleware and all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/restaurants", s.handleRestaurants)
	r.Get("/api/restaurants/{id}/menus", s.handleMenus)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// ChatMessage is one entry of client-supplied conversation history.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the incoming chat request. ThreadID is optional; the
// server mints one when absent so every response carries a thread id.
type ChatRequest struct {
	ThreadID string        `json:"threadId"`
	Message  string        `json:"message"`
	History  []ChatMessage `json:"history"`
}

// ChatResponse is the agent's answer plus the structured restaurant list.
type ChatResponse struct {
	ThreadID string             `json:"threadId"`
	Answer   string             `json:"answer"`
	Infos    []agent.Restaurant `json:"infos"`
	Error    string             `json:"error,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}
	log := s.log.With("threadId", threadID)
	log.Info("chat request", "messageLen", len(req.Message), "historyLen", len(req.History))

	start := time.Now()
	res, err := s.runner.Run(r.Context(), renderQuestion(req))
	duration := time.Since(start)

	if err != nil {
		log.Error("chat run failed", "duration", duration, "error", err)
		metrics.AgentRunsTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, ChatResponse{
			ThreadID: threadID,
			Error:    "agent run failed: " + err.Error(),
		})
		return
	}

	metrics.AgentRunsTotal.WithLabelValues(res.Outcome()).Inc()
	metrics.AgentRunDuration.Observe(duration.Seconds())
	metrics.AgentRunMessages.Observe(float64(len(res.Messages)))
	log.Info("chat run completed", "duration", duration, "outcome", res.Outcome(), "messages", len(res.Messages))

	infos := res.Infos
	if infos == nil {
		infos = []agent.Restaurant{}
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		ThreadID: threadID,
		Answer:   res.Answer,
		Infos:    infos,
	})
}

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	rows, err := s.catalog.Restaurants(r.Context())
	if err != nil {
		s.log.Error("list restaurants failed", "error", err)
		http.Error(w, "Failed to list restaurants", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []sqltool.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restaurants": rows,
		"count":       len(rows),
	})
}

func (s *Server) handleMenus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid restaurant id", http.StatusBadRequest)
		return
	}

	items, err := s.catalog.MenuItems(r.Context(), id)
	if err != nil {
		s.log.Error("list menus failed", "restaurantId", id, "error", err)
		http.Error(w, "Failed to list menus", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []store.MenuItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"menus": items,
		"count": len(items),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// renderQuestion folds the client-supplied history into the question text.
// The agent itself is single-turn; prior turns become context.
func renderQuestion(req ChatRequest) string {
	if len(req.History) == 0 {
		return req.Message
	}

	var sb strings.Builder
	sb.WriteString("이전 대화:\n")
	for _, m := range req.History {
		role := "사용자"
		if m.Role == "assistant" {
			role = "어시스턴트"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, m.Content)
	}
	sb.WriteString("\n현재 질문: ")
	sb.WriteString(req.Message)
	return sb.String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
