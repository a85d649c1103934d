package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/engine"
	"github.com/triagehq/triage/internal/ticket"
)

// Config holds server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server exposes the triage engine over HTTP: ticket submission, audit
// trail queries, escalation summaries and a WebSocket chat endpoint.
type Server struct {
	cfg        Config
	engine     *engine.Engine
	auditStore *audit.Store
	router     chi.Router
	httpServer *http.Server
	markdown   goldmark.Markdown
}

// New creates a server around the given engine and audit store.
func New(cfg Config, eng *engine.Engine, auditStore *audit.Store) *Server {
	s := &Server{
		cfg:        cfg,
		engine:     eng,
		auditStore: auditStore,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		corsOpts.AllowedOrigins = s.cfg.AllowedOrigins
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/api/tickets", s.handleSubmitTicket)
	r.Get("/api/escalations/{ticketID}", s.handleEscalation)
	r.Get("/api/chat", s.handleWebSocket)

	audit.RegisterRoutes(r, s.auditStore)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) handleSubmitTicket(w http.ResponseWriter, r *http.Request) {
	var t ticket.Ticket
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "invalid ticket payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if t.ID == "" {
		http.Error(w, "ticket_id is required", http.StatusBadRequest)
		return
	}
	if t.Text == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if t.Platform == "" {
		t.Platform = ticket.PlatformAPI
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	result, err := s.engine.Run(r.Context(), &t, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleEscalation renders the stored escalation summary for a ticket as
// HTML. 404 when the ticket has no trail or the trail never escalated.
func (s *Server) handleEscalation(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	trail, err := s.auditStore.GetByTicket(r.Context(), ticketID)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	md := escalationMarkdown(trail)
	if md == "" {
		http.Error(w, "ticket was not escalated", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(md), &buf); err != nil {
		http.Error(w, "rendering summary: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// escalationMarkdown finds the most recent escalation event on a trail.
func escalationMarkdown(trail *audit.Trail) string {
	for i := len(trail.Events) - 1; i >= 0; i-- {
		ev := trail.Events[i]
		if ev.Step != audit.StepEscalation {
			continue
		}
		if md, ok := ev.Payload["escalation_md"].(string); ok {
			return md
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("triage server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
