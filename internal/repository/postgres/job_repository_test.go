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

// createTestJob creates a sampling job with test data
func createTestJob() *domain.Job {
	now := time.Now().UTC()
	return &domain.Job{
		ID:       uuid.New(),
		Kind:     domain.JobKindSampling,
		Status:   domain.JobStatusPending,
		Sensor:   "landsat8-sr",
		Variable: domain.VariableLAI,
		Params: domain.JobParams{
			SiteFrom:      1,
			SiteTo:        10,
			BufferDays:    15,
			SplitUnit:     domain.SplitUnitMonth,
			MaxCloudCover: 80,
			Destination:   domain.DestinationWarehouse,
			Sampling: &domain.SamplingParams{
				NumPixels:   500,
				Seed:        42,
				DropInvalid: true,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestJobRepository_CreateAndGet(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewJobRepository(db)
	ctx := context.Background()

	job := createTestJob()
	defer cleanupJobs(t, db, job.ID)

	require.NoError(t, repo.Create(ctx, job))

	fetched, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
	assert.Equal(t, domain.JobKindSampling, fetched.Kind)
	assert.Equal(t, domain.JobStatusPending, fetched.Status)
	assert.Equal(t, job.Params, fetched.Params)
	require.NotNil(t, fetched.Params.Sampling)
	assert.Equal(t, int64(500), fetched.Params.Sampling.NumPixels)
	assert.Nil(t, fetched.StartedAt)
	assert.Nil(t, fetched.FinishedAt)
}

func TestJobRepository_GetNotFound(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewJobRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobRepository_ListFilters(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewJobRepository(db)
	ctx := context.Background()

	job := createTestJob()
	defer cleanupJobs(t, db, job.ID)
	require.NoError(t, repo.Create(ctx, job))

	jobs, total, err := repo.List(ctx, &domain.JobFilter{
		Kind:   domain.JobKindSampling,
		Sensor: "landsat8-sr",
	}, 50, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))

	var ids []uuid.UUID
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	assert.Contains(t, ids, job.ID)

	_, total, err = repo.List(ctx, &domain.JobFilter{Sensor: "no-such-sensor"}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestJobRepository_Lifecycle(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewJobRepository(db)
	ctx := context.Background()

	job := createTestJob()
	defer cleanupJobs(t, db, job.ID)
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.SetShardsTotal(ctx, job.ID, 3))
	require.NoError(t, repo.MarkStarted(ctx, job.ID))

	started, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusRunning, started.Status)
	assert.Equal(t, 3, started.ShardsTotal)
	require.NotNil(t, started.StartedAt)
	firstStart := *started.StartedAt

	// A second start keeps the original timestamp.
	require.NoError(t, repo.MarkStarted(ctx, job.ID))
	again, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, again.StartedAt)
	assert.True(t, again.StartedAt.Equal(firstStart))

	after, err := repo.RecordShardOutcome(ctx, job.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ShardsDone)
	assert.Equal(t, 0, after.ShardsFailed)

	after, err = repo.RecordShardOutcome(ctx, job.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, after.ShardsDone)
	assert.Equal(t, 1, after.ShardsFailed)
	assert.InDelta(t, 2.0/3.0, after.Progress(), 1e-9)

	require.NoError(t, repo.Finish(ctx, job.ID, domain.JobStatusPartial, "1 of 3 shards failed"))
	finished, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPartial, finished.Status)
	assert.Equal(t, "1 of 3 shards failed", finished.Error)
	require.NotNil(t, finished.FinishedAt)
}

func TestJobRepository_ListRunningBefore(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewJobRepository(db)
	ctx := context.Background()

	job := createTestJob()
	defer cleanupJobs(t, db, job.ID)
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.MarkStarted(ctx, job.ID))

	stale, err := repo.ListRunningBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, j := range stale {
		ids = append(ids, j.ID)
	}
	assert.Contains(t, ids, job.ID)

	fresh, err := repo.ListRunningBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	for _, j := range fresh {
		assert.NotEqual(t, job.ID, j.ID)
	}
}

func TestJobRepository_RetentionSweep(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewJobRepository(db)
	ctx := context.Background()

	job := createTestJob()
	defer cleanupJobs(t, db, job.ID)
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.Finish(ctx, job.ID, domain.JobStatusCompleted, ""))

	expired, err := repo.ListFinishedBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	var ids []uuid.UUID
	for _, j := range expired {
		ids = append(ids, j.ID)
	}
	assert.Contains(t, ids, job.ID)

	// A cutoff in the past leaves the job alone.
	fresh, err := repo.ListFinishedBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	for _, j := range fresh {
		assert.NotEqual(t, job.ID, j.ID)
	}

	require.NoError(t, repo.Delete(ctx, job.ID))
	_, err = repo.GetByID(ctx, job.ID)
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, job.ID)))
}
