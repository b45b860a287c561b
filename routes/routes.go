package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yamanotatsu/task-master-api/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// Streaming responses hold the connection open well past normal request
	// times, so the timeout has to cover the longest expected completion.
	r.Use(middleware.Timeout(5 * time.Minute))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-AI-Provider", "X-AI-Model"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// AI invocation endpoints
		r.Route("/ai", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Post("/generate-text", deps.AIHandler.HandleGenerateText)
			r.Post("/stream-text", deps.AIHandler.HandleStreamText)
			r.Post("/generate-object", deps.AIHandler.HandleGenerateObject)
		})

		// Usage telemetry endpoints
		r.Route("/usage", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Get("/", deps.UsageHandler.HandleList)
			r.Get("/summary", deps.UsageHandler.HandleSummary)
			r.Get("/{id}", deps.UsageHandler.HandleGet)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
