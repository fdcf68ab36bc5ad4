package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/wanderhk/tourism-ai/internal/api/chat"
	"github.com/wanderhk/tourism-ai/internal/api/itinerary"
	"github.com/wanderhk/tourism-ai/internal/api/recommendations"
	"github.com/wanderhk/tourism-ai/internal/api/session"
	"github.com/wanderhk/tourism-ai/internal/api/translation"
)

// Config carries the handlers the router wires up.
type Config struct {
	ChatHandler           *chat.HandlerImpl
	ItineraryHandler      *itinerary.HandlerImpl
	TranslationHandler    *translation.HandlerImpl
	RecommendationHandler *recommendations.HandlerImpl
	SessionHandler        *session.HandlerImpl
	HealthCheck           http.HandlerFunc
}

// SetupRouter configures the API routes. Server-wide middleware (request
// ID, logging, recoverer) is applied by the caller before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	if cfg.HealthCheck != nil {
		r.Get("/health", cfg.HealthCheck)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", cfg.ChatHandler.Chat)
		r.Post("/itinerary", cfg.ItineraryHandler.Plan)
		r.Post("/translate", cfg.TranslationHandler.Translate)
		r.Post("/translate/image", cfg.TranslationHandler.TranslateImage)
		r.Post("/recommendations", cfg.RecommendationHandler.Recommend)

		r.Route("/session", func(r chi.Router) {
			r.Post("/", cfg.SessionHandler.Create)
			r.Post("/cleanup", cfg.SessionHandler.Cleanup)
			r.Get("/{id}/stats", cfg.SessionHandler.Stats)
			r.Get("/{id}/history", cfg.SessionHandler.History)
		})
	})

	return r
}
