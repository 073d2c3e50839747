package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// createTestShards creates shards covering consecutive monthly windows
func createTestShards(jobID, siteID uuid.UUID, months int) []*domain.Shard {
	now := time.Now().UTC()
	shards := make([]*domain.Shard, 0, months)
	for i := 0; i < months; i++ {
		start := time.Date(2021, time.Month(6+i), 1, 0, 0, 0, 0, time.UTC)
		shards = append(shards, &domain.Shard{
			ID:          uuid.New(),
			JobID:       jobID,
			SiteID:      siteID,
			WindowStart: start,
			WindowEnd:   start.AddDate(0, 1, 0),
			Status:      domain.ShardStatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return shards
}

func TestShardRepository_CreateBatchAndList(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	jobRepo := NewJobRepository(db)
	siteRepo := NewSiteRepository(db)
	shardRepo := NewShardRepository(db)
	ctx := context.Background()

	job := createTestJob()
	site := createTestSite("Shard Batch Site")
	defer cleanupJobs(t, db, job.ID)
	defer cleanupSites(t, db, site.ID)
	require.NoError(t, jobRepo.Create(ctx, job))
	require.NoError(t, siteRepo.Create(ctx, site))

	shards := createTestShards(job.ID, site.ID, 3)
	require.NoError(t, shardRepo.CreateBatch(ctx, shards))

	listed, err := shardRepo.ListByJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		assert.True(t, listed[i-1].WindowStart.Before(listed[i].WindowStart))
	}
	assert.Equal(t, domain.ShardStatusPending, listed[0].Status)

	fetched, err := shardRepo.GetByID(ctx, shards[1].ID)
	require.NoError(t, err)
	assert.Equal(t, shards[1].ID, fetched.ID)
	assert.True(t, fetched.WindowEnd.Equal(shards[1].WindowEnd))
}

func TestShardRepository_CreateBatchEmpty(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	shardRepo := NewShardRepository(db)
	assert.NoError(t, shardRepo.CreateBatch(context.Background(), nil))
}

func TestShardRepository_StatusTransitions(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	jobRepo := NewJobRepository(db)
	siteRepo := NewSiteRepository(db)
	shardRepo := NewShardRepository(db)
	ctx := context.Background()

	job := createTestJob()
	site := createTestSite("Shard Status Site")
	defer cleanupJobs(t, db, job.ID)
	defer cleanupSites(t, db, site.ID)
	require.NoError(t, jobRepo.Create(ctx, job))
	require.NoError(t, siteRepo.Create(ctx, site))

	shards := createTestShards(job.ID, site.ID, 2)
	require.NoError(t, shardRepo.CreateBatch(ctx, shards))

	require.NoError(t, shardRepo.MarkRunning(ctx, shards[0].ID))
	running, err := shardRepo.GetByID(ctx, shards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShardStatusRunning, running.Status)

	require.NoError(t, shardRepo.MarkSucceeded(ctx, shards[0].ID, 12, 360))
	done, err := shardRepo.GetByID(ctx, shards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShardStatusSucceeded, done.Status)
	assert.Equal(t, 12, done.SceneCount)
	assert.Equal(t, 360, done.SampleCount)
	assert.Empty(t, done.Error)
	assert.True(t, done.Status.IsTerminal())

	require.NoError(t, shardRepo.MarkFailed(ctx, shards[1].ID, "scene tile missing"))
	failed, err := shardRepo.GetByID(ctx, shards[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShardStatusFailed, failed.Status)
	assert.Equal(t, "scene tile missing", failed.Error)
}

func TestShardRepository_NotFound(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	shardRepo := NewShardRepository(db)
	ctx := context.Background()

	_, err := shardRepo.GetByID(ctx, uuid.New())
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(shardRepo.MarkRunning(ctx, uuid.New())))
	assert.True(t, apperrors.IsNotFound(shardRepo.MarkSucceeded(ctx, uuid.New(), 0, 0)))
	assert.True(t, apperrors.IsNotFound(shardRepo.MarkFailed(ctx, uuid.New(), "boom")))
}
