// Package router assembles the HTTP surface of the booking assistant.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/josbro2/AI-Health-Book-AppBot/internal/clinic"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/conversation"
	"github.com/josbro2/AI-Health-Book-AppBot/internal/webchat"
	"github.com/josbro2/AI-Health-Book-AppBot/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WebChatHandler      *webchat.Handler
	MetricsHandler      http.Handler

	// StoreAvailable reports whether the appointments database is
	// reachable, surfaced by /health.
	StoreAvailable func() bool
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", healthHandler(cfg.StoreAvailable))

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Get("/doctors", listDoctors)

	if h := cfg.ConversationHandler; h != nil {
		r.Get("/languages", h.ListLanguages)
		r.Route("/conversations", func(r chi.Router) {
			r.Post("/start", h.Start)
			r.Post("/message", h.Message)
			r.Post("/select", h.Select)
			r.Post("/confirm", h.Confirm)
			r.Post("/cancel", h.Cancel)
			r.Post("/emergency", h.Emergency)
			r.Get("/{conversationID}/availability", h.Availability)
			r.Get("/{conversationID}/history", h.History)
		})
		r.Route("/extract", func(r chi.Router) {
			r.Post("/date", h.ExtractDate)
			r.Post("/specialty", h.ExtractSpecialty)
		})
	}

	if cfg.WebChatHandler != nil {
		r.Get("/ws/chat", cfg.WebChatHandler.HandleWebSocket)
	}

	return r
}

func healthHandler(storeAvailable func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := map[string]any{"status": "ok"}
		if storeAvailable != nil {
			status["database"] = storeAvailable()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}

func listDoctors(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"doctors": clinic.Doctors()})
}
