package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/catalog"
	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/nnet"
	"github.com/canopylabs/canopy/internal/pipeline"
	"github.com/canopylabs/canopy/internal/pkg/database"
	"github.com/canopylabs/canopy/internal/pkg/logger"
	chrepo "github.com/canopylabs/canopy/internal/repository/clickhouse"
	pgrepo "github.com/canopylabs/canopy/internal/repository/postgres"
	"github.com/canopylabs/canopy/internal/sensor"
	"github.com/canopylabs/canopy/internal/storage"
	"github.com/canopylabs/canopy/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log

	log.Info("starting worker")

	// Initialize dependencies
	deps, cleanup, err := initWorkerDependencies(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize dependencies", zap.Error(err))
	}
	defer cleanup()

	// Create worker server
	workerServer, err := worker.NewServer(log, cfg, deps)
	if err != nil {
		log.Fatal("failed to create worker server", zap.Error(err))
	}

	// Start worker in a goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- workerServer.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down worker...")
		workerServer.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("worker server error", zap.Error(err))
		}
	}

	log.Info("worker stopped")
}

// initWorkerDependencies initializes dependencies for the worker
func initWorkerDependencies(cfg *config.Config, log *zap.Logger) (*worker.Dependencies, func(), error) {
	ctx := context.Background()

	// Initialize PostgreSQL using database wrapper
	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	// A second sqlx handle for the network asset repository
	sqlxDB, err := database.NewSQLX(cfg.Postgres)
	if err != nil {
		pgDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize sqlx: %w", err)
	}

	// Initialize ClickHouse using database wrapper
	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		pgDB.Close()
		_ = sqlxDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}

	// Initialize MinIO. Shard processing reads tiles and writes
	// exports, so the worker will not start without it.
	minioClient, err := initMinio(cfg)
	if err != nil {
		pgDB.Close()
		_ = sqlxDB.Close()
		_ = chDB.Close()
		return nil, nil, fmt.Errorf("failed to initialize MinIO: %w", err)
	}

	// Initialize repositories
	jobRepo := pgrepo.NewJobRepository(pgDB)
	shardRepo := pgrepo.NewShardRepository(pgDB)
	siteRepo := pgrepo.NewSiteRepository(pgDB)
	sceneRepo := pgrepo.NewSceneRepository(pgDB)
	landCoverRepo := pgrepo.NewLandCoverRepository(pgDB)
	networkRepo := pgrepo.NewNetworkRepository(sqlxDB)
	sampleRepo := chrepo.NewSampleRepository(chDB)

	// Object stores
	tiles := storage.NewTileStore(minioClient, cfg.MinIO.TileBucket, log)
	exports := storage.NewExportStore(minioClient, cfg.MinIO.ExportBucket, log)

	// Processing engine
	sensors := sensor.NewRegistry()
	archive := catalog.NewArchive(sceneRepo, tiles, log)
	landCover := catalog.NewLandCoverSource(landCoverRepo, tiles, log)

	var networks nnet.Source
	if cfg.Assets.Source == "file" {
		networks = nnet.NewFileSource(cfg.Assets.Path)
	} else {
		networks = nnet.NewStoreSource(networkRepo)
	}

	builder := pipeline.NewBuilder(
		archive,
		landCover,
		networks,
		sensors,
		pipeline.BuilderOptions{
			LandCoverVersion: cfg.Catalog.LandCoverVersion,
			MaxParallelLoads: cfg.Engine.MaxParallelLoads,
		},
		log,
	)

	// Create dependencies
	deps := &worker.Dependencies{
		JobRepo:    jobRepo,
		ShardRepo:  shardRepo,
		SiteRepo:   siteRepo,
		SampleRepo: sampleRepo,
		Builder:    builder,
		Exports:    exports,
	}

	// Cleanup function
	cleanup := func() {
		pgDB.Close()
		_ = sqlxDB.Close()
		_ = chDB.Close()
	}

	return deps, cleanup, nil
}

// initMinio initializes the MinIO client
func initMinio(cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return client, nil
}
