// Package api provides HTTP API server components.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/memtide/memtide/config"
	"github.com/memtide/memtide/pkg/api/handlers"
	"github.com/memtide/memtide/pkg/api/middleware"
	"github.com/memtide/memtide/pkg/logger"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory handles memory lifecycle endpoints
	Memory *handlers.MemoryHandler

	// Search handles hybrid retrieval endpoints
	Search *handlers.SearchHandler

	// Profile handles decay profile endpoints
	Profile *handlers.ProfileHandler

	// Cache handles cache statistics endpoints
	Cache *handlers.CacheHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	}

	if cfg.Server.RateLimit.Enabled {
		r.Use(middleware.RateLimit(middleware.RateLimitOptions{
			RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
			Burst:             cfg.Server.RateLimit.Burst,
		}))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))
	r.Use(middleware.Timeout(cfg.Server.HTTP.ReadTimeout))

	// Register routes
	RegisterRoutes(r, handlers)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, handlers *Handlers) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Memory lifecycle routes
		if handlers.Memory != nil {
			r.Route("/memory/{userID}", func(r chi.Router) {
				r.Post("/", handlers.Memory.UpsertMemory)
				r.Get("/", handlers.Memory.ListMemories)
				r.Post("/lifecycles", handlers.Memory.RefreshLifecycles)
				r.Post("/clusters", handlers.Memory.RebuildClusters)
				r.Get("/clusters", handlers.Memory.GetClusters)
				r.Get("/{memoryID}", handlers.Memory.GetMemory)
				r.Delete("/{memoryID}", handlers.Memory.DeleteMemory)
				r.Post("/{memoryID}/access", handlers.Memory.RecordAccess)
				r.Get("/{memoryID}/recommendations", handlers.Memory.Recommend)
			})
		}

		// Retrieval routes
		if handlers.Search != nil {
			r.Get("/search/{userID}", handlers.Search.Search)
		}

		// Decay profile routes
		if handlers.Profile != nil {
			r.Route("/profiles/{userID}", func(r chi.Router) {
				r.Get("/", handlers.Profile.GetProfile)
				r.Put("/", handlers.Profile.UpdateProfile)
				r.Get("/decay-rate", handlers.Profile.GetDecayRate)
			})
		}

		// Cache statistics routes
		if handlers.Cache != nil {
			r.Get("/cache/stats", handlers.Cache.Stats)
			r.Post("/cache/stats/reset", handlers.Cache.ResetStats)
		}
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}
}
