package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/middleware"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Databases    *Databases
	Repositories *Repositories
	Services     *Services
	Handlers     *Handlers

	RateLimit *middleware.RateLimitMiddleware
}

// initDependencies wires the full dependency graph
func initDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	ctx := context.Background()

	dbs, err := initDatabases(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	repos := initRepositories(dbs)
	svcs := initServices(cfg, logger, dbs, repos)
	handlers := initHandlers(logger, dbs, repos, svcs, appVersion)

	deps := &Dependencies{
		Config:       cfg,
		Logger:       logger,
		Databases:    dbs,
		Repositories: repos,
		Services:     svcs,
		Handlers:     handlers,
	}

	if cfg.RateLimit.Enabled {
		rlConfig := middleware.DefaultRateLimitConfig()
		if cfg.RateLimit.RequestsPerMin > 0 {
			rlConfig.Max = cfg.RateLimit.RequestsPerMin
		}
		deps.RateLimit = middleware.NewRateLimitMiddleware(dbs.Redis.Client, rlConfig)
	}

	return deps, nil
}

// Close releases all held connections
func (d *Dependencies) Close() {
	if d.Databases != nil {
		d.Databases.Close()
	}
}
