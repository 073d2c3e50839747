package main

import (
	chrepo "github.com/canopylabs/canopy/internal/repository/clickhouse"
	pgrepo "github.com/canopylabs/canopy/internal/repository/postgres"
)

// Repositories holds all repository instances
type Repositories struct {
	// PostgreSQL repositories (jobs, sites, catalog metadata)
	Job       *pgrepo.JobRepository
	Shard     *pgrepo.ShardRepository
	Site      *pgrepo.SiteRepository
	Scene     *pgrepo.SceneRepository
	LandCover *pgrepo.LandCoverRepository
	Network   *pgrepo.NetworkRepository

	// ClickHouse repositories (pixel sample warehouse)
	Sample *chrepo.SampleRepository
}

// initRepositories initializes all repositories
func initRepositories(dbs *Databases) *Repositories {
	return &Repositories{
		Job:       pgrepo.NewJobRepository(dbs.Postgres),
		Shard:     pgrepo.NewShardRepository(dbs.Postgres),
		Site:      pgrepo.NewSiteRepository(dbs.Postgres),
		Scene:     pgrepo.NewSceneRepository(dbs.Postgres),
		LandCover: pgrepo.NewLandCoverRepository(dbs.Postgres),
		Network:   pgrepo.NewNetworkRepository(dbs.SQLX),

		Sample: chrepo.NewSampleRepository(dbs.ClickHouse),
	}
}
