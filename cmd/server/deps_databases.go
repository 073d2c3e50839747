package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/canopylabs/canopy/internal/config"
	"github.com/canopylabs/canopy/internal/pkg/database"
)

// Databases holds all backing-store connections
type Databases struct {
	Postgres    *database.PostgresDB
	SQLX        *sqlx.DB
	ClickHouse  *database.ClickHouseDB
	Redis       *database.RedisDB
	Minio       *minio.Client
	AsynqClient *asynq.Client
}

// initDatabases initializes all backing-store connections
func initDatabases(ctx context.Context, cfg *config.Config) (*Databases, error) {
	dbs := &Databases{}

	// Initialize PostgreSQL
	pgDB, err := database.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	dbs.Postgres = pgDB

	// A second sqlx handle to the same database for the network asset
	// repository, which reads model banks with sqlx struct scanning.
	sqlxDB, err := database.NewSQLX(cfg.Postgres)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to initialize sqlx: %w", err)
	}
	dbs.SQLX = sqlxDB

	// Initialize ClickHouse
	chDB, err := database.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to initialize ClickHouse: %w", err)
	}
	dbs.ClickHouse = chDB

	// Initialize Redis
	redisDB, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}
	dbs.Redis = redisDB

	// Initialize MinIO. Tiles and exports both live in the object
	// store, so the server will not start without it.
	minioClient, err := initMinio(cfg)
	if err != nil {
		dbs.Close()
		return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
	}
	dbs.Minio = minioClient

	// Initialize Asynq client for enqueuing shard and export tasks
	dbs.AsynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return dbs, nil
}

// Close closes all backing-store connections
func (d *Databases) Close() {
	if d.Postgres != nil {
		d.Postgres.Close()
	}
	if d.SQLX != nil {
		_ = d.SQLX.Close()
	}
	if d.ClickHouse != nil {
		_ = d.ClickHouse.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.AsynqClient != nil {
		_ = d.AsynqClient.Close()
	}
}

// initMinio initializes the MinIO client and ensures both buckets exist
func initMinio(cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinIO.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
		Secure: cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx := context.Background()
	for _, bucket := range []string{cfg.MinIO.TileBucket, cfg.MinIO.ExportBucket} {
		exists, err := client.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}

	return client, nil
}
