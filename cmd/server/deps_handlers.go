package main

import (
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/handler"
)

// Handlers holds all handler instances
type Handlers struct {
	Health   *handler.HealthHandler
	Jobs     *handler.JobsHandler
	Sites    *handler.SitesHandler
	Products *handler.ProductsHandler
	Results  *handler.ResultsHandler
	Docs     *handler.DocsHandler
}

// initHandlers initializes all handlers
func initHandlers(
	logger *zap.Logger,
	dbs *Databases,
	repos *Repositories,
	svcs *Services,
	version string,
) *Handlers {
	return &Handlers{
		Health: handler.NewHealthHandler(
			dbs.Postgres.Pool,
			dbs.ClickHouse.Conn,
			dbs.Redis.Client,
			svcs.Exports,
			version,
		),
		Jobs: handler.NewJobsHandler(
			svcs.Job,
			logger,
		),
		Sites: handler.NewSitesHandler(
			svcs.Site,
			logger,
		),
		Products: handler.NewProductsHandler(
			svcs.ProductQuery,
			logger,
		),
		Results: handler.NewResultsHandler(
			repos.Job,
			repos.Sample,
			svcs.Exports,
			logger,
		),
		Docs: handler.NewDocsHandler(),
	}
}
