// Package testutil provides shared test fixtures for the Canopy API.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/domain"
)

// NewTestSite creates a test site with default values.
func NewTestSite(ordinal int) *domain.Site {
	return &domain.Site{
		ID:          uuid.New(),
		Ordinal:     ordinal,
		Name:        "test-site",
		Description: "Test site",
		Geometry: orb.Polygon{
			{{10.0, 49.0}, {10.2, 49.0}, {10.2, 49.2}, {10.0, 49.2}, {10.0, 49.0}},
		},
		TimeStart: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC),
		TimeEnd:   time.Date(2021, 9, 30, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// NewTestJob creates a pending sampling job with default values.
func NewTestJob() *domain.Job {
	return &domain.Job{
		ID:       uuid.New(),
		Kind:     domain.JobKindSampling,
		Status:   domain.JobStatusPending,
		Sensor:   "sentinel2-sr",
		Variable: domain.VariableLAI,
		Params: domain.JobParams{
			SiteFrom:      1,
			SiteTo:        3,
			BufferDays:    15,
			SplitUnit:     domain.SplitUnitYear,
			MaxCloudCover: 90,
			Destination:   domain.DestinationWarehouse,
		},
		ShardsTotal: 3,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// NewTestShard creates a pending shard for the given job and site.
func NewTestShard(jobID, siteID uuid.UUID) *domain.Shard {
	return &domain.Shard{
		ID:          uuid.New(),
		JobID:       jobID,
		SiteID:      siteID,
		WindowStart: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2021, 9, 1, 0, 0, 0, 0, time.UTC),
		Status:      domain.ShardStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// NewTestScene creates a catalog scene with default values.
func NewTestScene(id string) *domain.Scene {
	return &domain.Scene{
		ID:         id,
		Sensor:     "sentinel2-sr",
		AcquiredAt: time.Date(2021, 6, 12, 10, 30, 0, 0, time.UTC),
		CloudCover: 12.5,
		Footprint: orb.Polygon{
			{{9.9, 48.9}, {10.3, 48.9}, {10.3, 49.3}, {9.9, 49.3}, {9.9, 48.9}},
		},
		ViewZenith:  4.2,
		SunZenith:   28.6,
		ViewAzimuth: 101.3,
		SunAzimuth:  152.8,
		TileKey:     "tiles/sentinel2-sr/" + id + ".bin",
	}
}

// NewTestSample creates a warehouse sample row with default values.
func NewTestSample(jobID, shardID, siteID uuid.UUID) *domain.Sample {
	return &domain.Sample{
		ID:         uuid.New().String(),
		JobID:      jobID.String(),
		ShardID:    shardID.String(),
		SiteID:     siteID.String(),
		SceneID:    "S2A_20210612T103021",
		Sensor:     "sentinel2-sr",
		Variable:   string(domain.VariableLAI),
		Band:       "B4",
		AcquiredAt: time.Date(2021, 6, 12, 10, 30, 0, 0, time.UTC),
		Longitude:  10.1,
		Latitude:   49.1,
		Value:      0.042,
		QC:         0,
		Partition:  3,
	}
}
