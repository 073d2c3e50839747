package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pipeline"
	"github.com/canopylabs/canopy/internal/raster"
	"github.com/canopylabs/canopy/internal/storage"
)

// MockJobStore is a mock job store
type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) MarkStarted(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobStore) RecordShardOutcome(ctx context.Context, id uuid.UUID, failed bool) (*domain.Job, error) {
	args := m.Called(ctx, id, failed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

func (m *MockJobStore) Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error {
	args := m.Called(ctx, id, status, errMsg)
	return args.Error(0)
}

// MockShardStore is a mock shard store
type MockShardStore struct {
	mock.Mock
}

func (m *MockShardStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shard, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Shard), args.Error(1)
}

func (m *MockShardStore) MarkRunning(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockShardStore) MarkSucceeded(ctx context.Context, id uuid.UUID, sceneCount, sampleCount int) error {
	args := m.Called(ctx, id, sceneCount, sampleCount)
	return args.Error(0)
}

func (m *MockShardStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

// MockSiteGetter is a mock site getter
type MockSiteGetter struct {
	mock.Mock
}

func (m *MockSiteGetter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Site), args.Error(1)
}

// MockSampleWriter is a mock warehouse writer
type MockSampleWriter struct {
	mock.Mock
}

func (m *MockSampleWriter) CreateBatch(ctx context.Context, samples []domain.Sample) error {
	args := m.Called(ctx, samples)
	return args.Error(0)
}

// MockProductBuilder is a mock product builder
type MockProductBuilder struct {
	mock.Mock
}

func (m *MockProductBuilder) Build(ctx context.Context, req domain.ProductRequest) (*raster.Collection, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*raster.Collection), args.Error(1)
}

// MockObjectPutter is a mock object store
type MockObjectPutter struct {
	mock.Mock
}

func (m *MockObjectPutter) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

// MockExportEnqueuer is a mock export enqueuer
type MockExportEnqueuer struct {
	mock.Mock
}

func (m *MockExportEnqueuer) EnqueueSampleExport(ctx context.Context, payload *SampleExportPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type shardWorkerMocks struct {
	jobs     *MockJobStore
	shards   *MockShardStore
	sites    *MockSiteGetter
	samples  *MockSampleWriter
	builder  *MockProductBuilder
	exports  *MockObjectPutter
	enqueuer *MockExportEnqueuer
}

func newTestShardWorker() (*ShardWorker, *shardWorkerMocks) {
	m := &shardWorkerMocks{
		jobs:     new(MockJobStore),
		shards:   new(MockShardStore),
		sites:    new(MockSiteGetter),
		samples:  new(MockSampleWriter),
		builder:  new(MockProductBuilder),
		exports:  new(MockObjectPutter),
		enqueuer: new(MockExportEnqueuer),
	}
	w := NewShardWorker(zap.NewNop(), m.jobs, m.shards, m.sites, m.samples, m.builder, m.exports, m.enqueuer)
	return w, m
}

// productCatalog serves prepared product images keyed by scene id.
type productCatalog struct {
	scenes []domain.Scene
	images map[string]*raster.Image
}

func (c *productCatalog) Search(_ context.Context, _ domain.SceneFilter) ([]domain.Scene, error) {
	return c.scenes, nil
}

func (c *productCatalog) Load(_ context.Context, sc domain.Scene) (*raster.Image, error) {
	return c.images[sc.ID], nil
}

func (c *productCatalog) LoadCloudProbability(_ context.Context, _ domain.Scene) (*raster.Image, error) {
	return nil, nil
}

func productCollection(images ...*raster.Image) *raster.Collection {
	cat := &productCatalog{images: map[string]*raster.Image{}}
	for i, img := range images {
		id := fmt.Sprintf("scene-%d", i+1)
		cat.scenes = append(cat.scenes, domain.Scene{ID: id, Sensor: "sentinel2-sr", AcquiredAt: img.Time})
		cat.images[id] = img
	}
	return raster.NewCollection(cat, "sentinel2-sr")
}

// productImage builds a finished LAI product with its metadata bands.
func productImage(t *testing.T, acquired time.Time, lai float64) *raster.Image {
	t.Helper()

	bound := orb.Bound{Min: orb.Point{10, 50}, Max: orb.Point{10.01, 50.01}}
	grid, err := raster.NewGrid(bound, 500)
	require.NoError(t, err)
	size := grid.Size()

	img := raster.NewImage(grid, acquired)
	img.Bands = append(img.Bands,
		raster.ConstantBand("LAI", size, lai),
		raster.ConstantBand("LAI_uncertainty", size, lai/10),
		raster.ConstantBand(pipeline.BandQC, size, 0),
		raster.ConstantBand(pipeline.BandPartition, size, 3),
		raster.ConstantBand(pipeline.BandLongitude, size, 10),
		raster.ConstantBand(pipeline.BandLatitude, size, 50),
		raster.ConstantBand(pipeline.BandDate, size, 142),
	)
	return img
}

func shardJob(kind domain.JobKind, total int) *domain.Job {
	now := time.Now().UTC()
	dest := domain.DestinationWarehouse
	if kind == domain.JobKindMapping {
		dest = domain.DestinationBucket
	}
	return &domain.Job{
		ID:       uuid.New(),
		Kind:     kind,
		Status:   domain.JobStatusRunning,
		Sensor:   "sentinel2-sr",
		Variable: domain.VariableLAI,
		Params: domain.JobParams{
			SiteFrom:      1,
			SiteTo:        1,
			MaxCloudCover: 80,
			Destination:   dest,
		},
		ShardsTotal: total,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func pendingShard(job *domain.Job, siteID uuid.UUID) *domain.Shard {
	return &domain.Shard{
		ID:          uuid.New(),
		JobID:       job.ID,
		SiteID:      siteID,
		WindowStart: time.Date(2021, 6, 1, 6, 0, 0, 0, time.UTC),
		WindowEnd:   time.Date(2021, 7, 1, 6, 0, 0, 0, time.UTC),
		Status:      domain.ShardStatusPending,
	}
}

func shardSite(id uuid.UUID) *domain.Site {
	return &domain.Site{
		ID:      id,
		Ordinal: 1,
		Name:    "spruce-stand",
		Geometry: orb.Polygon{orb.Ring{
			{10, 50}, {10.01, 50}, {10.01, 50.01}, {10, 50.01}, {10, 50},
		}},
	}
}

func shardTask(t *testing.T, kind domain.JobKind, shardID uuid.UUID) *asynq.Task {
	t.Helper()
	payload := &ShardPayload{ShardID: shardID}
	var (
		task *asynq.Task
		err  error
	)
	if kind == domain.JobKindMapping {
		task, err = NewMappingShardTask(payload)
	} else {
		task, err = NewSamplingShardTask(payload)
	}
	require.NoError(t, err)
	return task
}

func TestShardWorker_Sampling(t *testing.T) {
	t.Run("lands sampled rows in the warehouse", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 2)
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)
		img := productImage(t, time.Date(2021, 6, 10, 17, 0, 0, 0, time.UTC), 2.5)
		// Two measurement bands per pixel; metadata bands feed columns.
		wantRows := 2 * img.Grid.Size()

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.MatchedBy(func(req domain.ProductRequest) bool {
			return req.Sensor == "sentinel2-sr" &&
				req.Variable == domain.VariableLAI &&
				req.StartDate.Equal(shard.WindowStart) &&
				req.EndDate.Equal(shard.WindowEnd) &&
				len(req.Geometry) == 1
		})).Return(productCollection(img), nil)

		var rows []domain.Sample
		m.samples.On("CreateBatch", mock.Anything, mock.AnythingOfType("[]domain.Sample")).
			Run(func(args mock.Arguments) {
				rows = args.Get(1).([]domain.Sample)
			}).
			Return(nil)
		m.shards.On("MarkSucceeded", mock.Anything, shard.ID, 1, wantRows).Return(nil)

		after := *job
		after.ShardsDone = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, false).Return(&after, nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)

		require.Len(t, rows, wantRows)
		first := rows[0]
		assert.Equal(t, job.ID.String(), first.JobID)
		assert.Equal(t, shard.ID.String(), first.ShardID)
		assert.Equal(t, site.ID.String(), first.SiteID)
		assert.Equal(t, "scene-1", first.SceneID)
		assert.Equal(t, "LAI", first.Band)
		assert.InDelta(t, 2.5, first.Value, 1e-9)
		assert.Equal(t, uint8(3), first.Partition)
		assert.Equal(t, uint8(0), first.QC)
		assert.True(t, first.AcquiredAt.Equal(img.Time))
		assert.Equal(t, "LAI_uncertainty", rows[1].Band)

		// One of two shards done, so the job stays open.
		m.jobs.AssertNotCalled(t, "Finish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		m.enqueuer.AssertNotCalled(t, "EnqueueSampleExport", mock.Anything, mock.Anything)
		m.jobs.AssertExpectations(t)
		m.shards.AssertExpectations(t)
		m.samples.AssertExpectations(t)
	})

	t.Run("completes the job when the last shard lands", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 1)
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)
		img := productImage(t, time.Date(2021, 6, 10, 17, 0, 0, 0, time.UTC), 1.0)

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.AnythingOfType("domain.ProductRequest")).
			Return(productCollection(img), nil)
		m.samples.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
		m.shards.On("MarkSucceeded", mock.Anything, shard.ID, 1, mock.AnythingOfType("int")).Return(nil)

		after := *job
		after.ShardsDone = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, false).Return(&after, nil)
		m.jobs.On("Finish", mock.Anything, job.ID, domain.JobStatusCompleted, "").Return(nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.jobs.AssertExpectations(t)
	})

	t.Run("succeeds with zero output on an empty window", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 1)
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.AnythingOfType("domain.ProductRequest")).
			Return(productCollection(), nil)
		m.shards.On("MarkSucceeded", mock.Anything, shard.ID, 0, 0).Return(nil)

		after := *job
		after.ShardsDone = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, false).Return(&after, nil)
		m.jobs.On("Finish", mock.Anything, job.ID, domain.JobStatusCompleted, "").Return(nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.samples.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
		m.shards.AssertExpectations(t)
	})

	t.Run("enqueues a csv export for bucket destinations", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 2)
		job.Params.Destination = domain.DestinationBucket
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)
		img := productImage(t, time.Date(2021, 6, 10, 17, 0, 0, 0, time.UTC), 2.5)

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.AnythingOfType("domain.ProductRequest")).
			Return(productCollection(img), nil)
		m.samples.On("CreateBatch", mock.Anything, mock.Anything).Return(nil)
		m.enqueuer.On("EnqueueSampleExport", mock.Anything, mock.MatchedBy(func(p *SampleExportPayload) bool {
			return p.JobID == job.ID &&
				p.ShardID == shard.ID &&
				p.SiteOrdinal == 1 &&
				p.WindowStart.Equal(shard.WindowStart)
		})).Return(nil)
		m.shards.On("MarkSucceeded", mock.Anything, shard.ID, 1, mock.AnythingOfType("int")).Return(nil)

		after := *job
		after.ShardsDone = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, false).Return(&after, nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.enqueuer.AssertExpectations(t)
	})

	t.Run("skips shards of settled jobs", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 1)
		job.Status = domain.JobStatusCancelled
		shard := pendingShard(job, uuid.New())

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.jobs.AssertNotCalled(t, "MarkStarted", mock.Anything, mock.Anything)
		m.shards.AssertNotCalled(t, "MarkRunning", mock.Anything, mock.Anything)
	})

	t.Run("ignores a redelivered shard that already settled", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 1)
		shard := pendingShard(job, uuid.New())
		shard.Status = domain.ShardStatusSucceeded

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.shards.AssertNotCalled(t, "MarkRunning", mock.Anything, mock.Anything)
	})

	t.Run("settles a failing shard and marks the job partial", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 2)
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.AnythingOfType("domain.ProductRequest")).
			Return(nil, errors.New("tile payload missing"))
		m.shards.On("MarkFailed", mock.Anything, shard.ID, mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "tile payload missing")
		})).Return(nil)

		after := *job
		after.ShardsDone = 1
		after.ShardsFailed = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, true).Return(&after, nil)
		m.jobs.On("Finish", mock.Anything, job.ID, domain.JobStatusPartial, "1 of 2 shards failed").Return(nil)

		// No retry metadata on the context, so the failure settles now.
		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.shards.AssertExpectations(t)
		m.jobs.AssertExpectations(t)
	})

	t.Run("fails the job when every shard fails", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindSampling, 1)
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.AnythingOfType("domain.ProductRequest")).
			Return(nil, errors.New("tile payload missing"))
		m.shards.On("MarkFailed", mock.Anything, shard.ID, mock.AnythingOfType("string")).Return(nil)

		after := *job
		after.ShardsFailed = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, true).Return(&after, nil)
		m.jobs.On("Finish", mock.Anything, job.ID, domain.JobStatusFailed, "all shards failed").Return(nil)

		err := w.ProcessSamplingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)
		m.jobs.AssertExpectations(t)
	})
}

func TestShardWorker_Mapping(t *testing.T) {
	t.Run("uploads one product object per scene", func(t *testing.T) {
		w, m := newTestShardWorker()
		job := shardJob(domain.JobKindMapping, 1)
		site := shardSite(uuid.New())
		shard := pendingShard(job, site.ID)
		first := productImage(t, time.Date(2021, 6, 10, 17, 0, 0, 0, time.UTC), 2.5)
		second := productImage(t, time.Date(2021, 6, 20, 17, 0, 0, 0, time.UTC), 3.5)

		m.shards.On("GetByID", mock.Anything, shard.ID).Return(shard, nil)
		m.jobs.On("GetByID", mock.Anything, job.ID).Return(job, nil)
		m.jobs.On("MarkStarted", mock.Anything, job.ID).Return(nil)
		m.shards.On("MarkRunning", mock.Anything, shard.ID).Return(nil)
		m.sites.On("GetByID", mock.Anything, site.ID).Return(site, nil)
		m.builder.On("Build", mock.Anything, mock.AnythingOfType("domain.ProductRequest")).
			Return(productCollection(first, second), nil)

		var keys []string
		var payloads [][]byte
		m.exports.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, "application/octet-stream").
			Run(func(args mock.Arguments) {
				keys = append(keys, args.Get(1).(string))
				payloads = append(payloads, args.Get(2).([]byte))
			}).
			Return(nil)
		m.shards.On("MarkSucceeded", mock.Anything, shard.ID, 2, 0).Return(nil)

		after := *job
		after.ShardsDone = 1
		m.jobs.On("RecordShardOutcome", mock.Anything, job.ID, false).Return(&after, nil)
		m.jobs.On("Finish", mock.Anything, job.ID, domain.JobStatusCompleted, "").Return(nil)

		err := w.ProcessMappingTask(context.Background(), shardTask(t, job.Kind, shard.ID))
		require.NoError(t, err)

		require.Len(t, keys, 2)
		prefix := "jobs/" + job.ID.String() + "/"
		name := domain.ExportName("sentinel2-sr", domain.VariableLAI, 1,
			shard.WindowStart, shard.WindowEnd.AddDate(0, 0, -1))
		assert.Equal(t, prefix+name+"_scene-1.bin", keys[0])
		assert.Equal(t, prefix+name+"_scene-2.bin", keys[1])

		decoded, err := storage.DecodeImage(payloads[0])
		require.NoError(t, err)
		assert.Equal(t, first.Grid.Size(), decoded.Grid.Size())
		assert.True(t, decoded.Time.Equal(first.Time))

		m.samples.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
		m.exports.AssertNumberOfCalls(t, "Put", 2)
	})
}
