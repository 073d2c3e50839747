package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	h := deps.Handlers // Shorthand for handlers

	// Health and version routes
	h.Health.RegisterRoutes(app)

	// API documentation routes
	h.Docs.RegisterRoutes(app)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Versioned API routes
	api := app.Group("/api/v1")

	if deps.RateLimit != nil {
		api.Use(deps.RateLimit.Handler())
		if deps.Config.RateLimit.SubmitPerMin > 0 {
			submitLimit := deps.RateLimit.SubmitRateLimit(deps.Config.RateLimit.SubmitPerMin)
			api.Use("/jobs/sampling", submitLimit)
			api.Use("/jobs/mapping", submitLimit)
		}
	}

	h.Jobs.RegisterRoutes(api)
	h.Sites.RegisterRoutes(api)
	h.Products.RegisterRoutes(api)
	h.Results.RegisterRoutes(api)
}
