package main

import (
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/catalog"
	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/nnet"
	"github.com/canopylabs/canopy/internal/pipeline"
	"github.com/canopylabs/canopy/internal/sensor"
	"github.com/canopylabs/canopy/internal/service"
	"github.com/canopylabs/canopy/internal/storage"
	"github.com/canopylabs/canopy/internal/worker"
)

// Services holds all service instances and the engine they share
type Services struct {
	Job          *service.JobService
	Site         *service.SiteService
	ProductQuery *service.ProductQueryService

	// Shared infrastructure also wired into handlers
	Sensors  *sensor.Registry
	Tiles    *storage.TileStore
	Exports  *storage.ExportStore
	Builder  *pipeline.Builder
	Enqueuer *worker.Enqueuer
}

// initServices initializes all services
func initServices(cfg *config.Config, logger *zap.Logger, dbs *Databases, repos *Repositories) *Services {
	svcs := &Services{}

	// Sensor registry (band math and geometry metadata per mission)
	svcs.Sensors = sensor.NewRegistry()

	// Object stores
	svcs.Tiles = storage.NewTileStore(dbs.Minio, cfg.MinIO.TileBucket, logger)
	svcs.Exports = storage.NewExportStore(dbs.Minio, cfg.MinIO.ExportBucket, logger)

	// Scene archive and land-cover partition source
	archive := catalog.NewArchive(repos.Scene, svcs.Tiles, logger)
	landCover := catalog.NewLandCoverSource(repos.LandCover, svcs.Tiles, logger)

	// Network bank source: trained banks come from Postgres by default,
	// or from a directory of JSON files for air-gapped deployments.
	var networks nnet.Source
	if cfg.Assets.Source == "file" {
		networks = nnet.NewFileSource(cfg.Assets.Path)
	} else {
		networks = nnet.NewStoreSource(repos.Network)
	}

	// Processing engine
	svcs.Builder = pipeline.NewBuilder(
		archive,
		landCover,
		networks,
		svcs.Sensors,
		pipeline.BuilderOptions{
			LandCoverVersion: cfg.Catalog.LandCoverVersion,
			MaxParallelLoads: cfg.Engine.MaxParallelLoads,
		},
		logger,
	)

	// Shard and export task enqueuer
	svcs.Enqueuer = worker.NewEnqueuer(dbs.AsynqClient, cfg.Worker.QueueDefault, cfg.Worker.QueueLow)

	// Job service
	svcs.Job = service.NewJobService(
		repos.Job,
		repos.Shard,
		repos.Site,
		svcs.Sensors,
		svcs.Enqueuer,
		logger,
	)

	// Site service
	svcs.Site = service.NewSiteService(repos.Site)

	// Product query service
	svcs.ProductQuery = service.NewProductQueryService(svcs.Builder, repos.Site)

	return svcs
}
