package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pipeline"
	"github.com/canopylabs/canopy/internal/pkg/metrics"
	"github.com/canopylabs/canopy/internal/raster"
	"github.com/canopylabs/canopy/internal/storage"
)

// JobStore is the job state the shard worker reads and settles.
type JobStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	MarkStarted(ctx context.Context, id uuid.UUID) error
	RecordShardOutcome(ctx context.Context, id uuid.UUID, failed bool) (*domain.Job, error)
	Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error
}

// ShardStore is the shard state the shard worker drives through its
// lifecycle.
type ShardStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Shard, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkSucceeded(ctx context.Context, id uuid.UUID, sceneCount, sampleCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// SiteGetter resolves a shard's site.
type SiteGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error)
}

// SampleWriter lands sample rows in the warehouse.
type SampleWriter interface {
	CreateBatch(ctx context.Context, samples []domain.Sample) error
}

// ProductBuilder assembles the product collection for one request.
type ProductBuilder interface {
	Build(ctx context.Context, req domain.ProductRequest) (*raster.Collection, error)
}

// ObjectPutter uploads finished result objects.
type ObjectPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ExportEnqueuer hands follow-up export tasks to the queue.
type ExportEnqueuer interface {
	EnqueueSampleExport(ctx context.Context, payload *SampleExportPayload) error
}

// ShardWorker runs one (site, date window) slice of a job: it builds
// the product collection and either samples pixels into the warehouse
// or exports the product rasters to the bucket.
type ShardWorker struct {
	logger   *zap.Logger
	jobs     JobStore
	shards   ShardStore
	sites    SiteGetter
	samples  SampleWriter
	builder  ProductBuilder
	exports  ObjectPutter
	enqueuer ExportEnqueuer
}

// NewShardWorker creates a new shard worker
func NewShardWorker(
	logger *zap.Logger,
	jobs JobStore,
	shards ShardStore,
	sites SiteGetter,
	samples SampleWriter,
	builder ProductBuilder,
	exports ObjectPutter,
	enqueuer ExportEnqueuer,
) *ShardWorker {
	return &ShardWorker{
		logger:   logger,
		jobs:     jobs,
		shards:   shards,
		sites:    sites,
		samples:  samples,
		builder:  builder,
		exports:  exports,
		enqueuer: enqueuer,
	}
}

// ProcessSamplingTask processes a sampling shard task
func (w *ShardWorker) ProcessSamplingTask(ctx context.Context, t *asynq.Task) error {
	var payload ShardPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal shard payload: %w", err)
	}
	return w.run(ctx, payload.ShardID, w.sampleShard)
}

// ProcessMappingTask processes a mapping shard task
func (w *ShardWorker) ProcessMappingTask(ctx context.Context, t *asynq.Task) error {
	var payload ShardPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal shard payload: %w", err)
	}
	return w.run(ctx, payload.ShardID, w.mapShard)
}

type shardExec func(ctx context.Context, job *domain.Job, shard *domain.Shard, site *domain.Site) (sceneCount, sampleCount int, err error)

func (w *ShardWorker) run(ctx context.Context, shardID uuid.UUID, exec shardExec) error {
	shard, err := w.shards.GetByID(ctx, shardID)
	if err != nil {
		return fmt.Errorf("failed to load shard: %w", err)
	}
	job, err := w.jobs.GetByID(ctx, shard.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	// Cancelled and otherwise settled jobs drop their queued shards.
	if job.Status.IsTerminal() {
		w.logger.Info("skipping shard of settled job",
			zap.String("shard_id", shard.ID.String()),
			zap.String("job_id", job.ID.String()),
			zap.String("job_status", string(job.Status)))
		return nil
	}
	// A redelivered task whose shard already settled is a no-op.
	if shard.Status.IsTerminal() {
		return nil
	}

	if err := w.jobs.MarkStarted(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}
	if err := w.shards.MarkRunning(ctx, shard.ID); err != nil {
		return fmt.Errorf("failed to mark shard running: %w", err)
	}

	w.logger.Info("processing shard",
		zap.String("shard_id", shard.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Time("window_start", shard.WindowStart),
		zap.Time("window_end", shard.WindowEnd))

	started := time.Now()
	site, err := w.sites.GetByID(ctx, shard.SiteID)
	if err != nil {
		return w.fail(ctx, job, shard, started, fmt.Errorf("failed to load site: %w", err))
	}

	sceneCount, sampleCount, err := exec(ctx, job, shard, site)
	if err != nil {
		return w.fail(ctx, job, shard, started, err)
	}

	if err := w.shards.MarkSucceeded(ctx, shard.ID, sceneCount, sampleCount); err != nil {
		return fmt.Errorf("failed to mark shard succeeded: %w", err)
	}
	metrics.RecordShard(string(job.Kind), string(domain.ShardStatusSucceeded), time.Since(started))

	after, err := w.jobs.RecordShardOutcome(ctx, job.ID, false)
	if err != nil {
		return fmt.Errorf("failed to record shard outcome: %w", err)
	}
	w.finalize(ctx, after)

	w.logger.Info("shard completed",
		zap.String("shard_id", shard.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Int("scenes", sceneCount),
		zap.Int("samples", sampleCount),
		zap.Duration("duration", time.Since(started)))
	return nil
}

// fail settles a shard only on its final delivery; earlier attempts
// return the cause so the queue retries. A context without retry
// metadata settles immediately.
func (w *ShardWorker) fail(ctx context.Context, job *domain.Job, shard *domain.Shard, started time.Time, cause error) error {
	retried, hasRetried := asynq.GetRetryCount(ctx)
	maxRetry, hasMax := asynq.GetMaxRetry(ctx)
	if hasRetried && hasMax && retried < maxRetry {
		return cause
	}

	w.logger.Error("shard failed",
		zap.String("shard_id", shard.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.Error(cause))

	if err := w.shards.MarkFailed(ctx, shard.ID, cause.Error()); err != nil {
		return fmt.Errorf("failed to mark shard failed: %w", err)
	}
	metrics.RecordShard(string(job.Kind), string(domain.ShardStatusFailed), time.Since(started))

	after, err := w.jobs.RecordShardOutcome(ctx, job.ID, true)
	if err != nil {
		return fmt.Errorf("failed to record shard outcome: %w", err)
	}
	w.finalize(ctx, after)
	return nil
}

// finalize settles the job once every shard has landed.
func (w *ShardWorker) finalize(ctx context.Context, job *domain.Job) {
	if job.ShardsDone+job.ShardsFailed < job.ShardsTotal {
		return
	}

	var (
		status domain.JobStatus
		msg    string
	)
	switch {
	case job.ShardsFailed == 0:
		status = domain.JobStatusCompleted
	case job.ShardsFailed == job.ShardsTotal:
		status = domain.JobStatusFailed
		msg = "all shards failed"
	default:
		status = domain.JobStatusPartial
		msg = fmt.Sprintf("%d of %d shards failed", job.ShardsFailed, job.ShardsTotal)
	}

	if err := w.jobs.Finish(ctx, job.ID, status, msg); err != nil {
		w.logger.Error("failed to finish job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err))
		return
	}
	w.logger.Info("job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", string(status)),
		zap.Int("shards_done", job.ShardsDone),
		zap.Int("shards_failed", job.ShardsFailed))
}

func shardRequest(job *domain.Job, shard *domain.Shard, site *domain.Site) domain.ProductRequest {
	return domain.ProductRequest{
		Sensor:        job.Sensor,
		Variable:      job.Variable,
		Geometry:      site.Geometry,
		StartDate:     shard.WindowStart,
		EndDate:       shard.WindowEnd,
		MaxCloudCover: job.Params.MaxCloudCover,
		InputScale:    job.Params.InputScale,
		OutputScale:   job.Params.OutputScale,
		StartMonth:    job.Params.StartMonth,
		EndMonth:      job.Params.EndMonth,
	}
}

// metaBands feed sample row columns rather than rows of their own.
var metaBands = map[string]bool{
	pipeline.BandDate:      true,
	pipeline.BandQC:        true,
	pipeline.BandLongitude: true,
	pipeline.BandLatitude:  true,
	pipeline.BandPartition: true,
}

func (w *ShardWorker) sampleShard(ctx context.Context, job *domain.Job, shard *domain.Shard, site *domain.Site) (int, int, error) {
	col, err := w.builder.Build(ctx, shardRequest(job, shard, site))
	if err != nil {
		return 0, 0, err
	}
	images, err := col.Images(ctx)
	if err != nil {
		return 0, 0, err
	}

	var opts raster.SampleOptions
	if sp := job.Params.Sampling; sp != nil {
		opts = raster.SampleOptions{
			NumPixels:   sp.NumPixels,
			Factor:      sp.Factor,
			Seed:        sp.Seed,
			DropInvalid: sp.DropInvalid,
		}
	}

	now := time.Now().UTC()
	var rows []domain.Sample
	for _, img := range images {
		pixels, err := img.Sample(opts)
		if err != nil {
			return 0, 0, err
		}
		rows = append(rows, sampleRows(job, shard, img, pixels, now)...)
	}

	if len(rows) > 0 {
		if err := w.samples.CreateBatch(ctx, rows); err != nil {
			return 0, 0, fmt.Errorf("failed to write samples: %w", err)
		}
		metrics.RecordSamples(job.Sensor, string(job.Variable), len(rows))
	}

	if job.Params.Destination == domain.DestinationBucket {
		payload := &SampleExportPayload{
			JobID:       job.ID,
			ShardID:     shard.ID,
			SiteID:      site.ID,
			SiteOrdinal: site.Ordinal,
			Sensor:      job.Sensor,
			Variable:    job.Variable,
			WindowStart: shard.WindowStart,
			WindowEnd:   shard.WindowEnd,
		}
		if err := w.enqueuer.EnqueueSampleExport(ctx, payload); err != nil {
			return 0, 0, fmt.Errorf("failed to enqueue sample export: %w", err)
		}
	}

	return len(images), len(rows), nil
}

// sampleRows flattens drawn pixels into warehouse rows, one per valid
// measurement band. Bands emit in image order so equal draws produce
// equal row sets.
func sampleRows(job *domain.Job, shard *domain.Shard, img *raster.Image, pixels []raster.PixelSample, now time.Time) []domain.Sample {
	var sceneID string
	if img.Scene != nil {
		sceneID = img.Scene.ID
	}

	rows := make([]domain.Sample, 0, len(pixels))
	for _, px := range pixels {
		var qc, part uint8
		if px.Valid[pipeline.BandQC] {
			qc = uint8(px.Values[pipeline.BandQC])
		}
		if px.Valid[pipeline.BandPartition] {
			part = uint8(px.Values[pipeline.BandPartition])
		}

		for _, b := range img.Bands {
			if metaBands[b.Name] || !px.Valid[b.Name] {
				continue
			}
			rows = append(rows, domain.Sample{
				ID:         uuid.NewString(),
				JobID:      job.ID.String(),
				ShardID:    shard.ID.String(),
				SiteID:     shard.SiteID.String(),
				SceneID:    sceneID,
				Sensor:     job.Sensor,
				Variable:   string(job.Variable),
				Band:       b.Name,
				AcquiredAt: img.Time,
				Longitude:  px.Longitude,
				Latitude:   px.Latitude,
				Value:      px.Values[b.Name],
				QC:         qc,
				Partition:  part,
				CreatedAt:  now,
			})
		}
	}
	return rows
}

func (w *ShardWorker) mapShard(ctx context.Context, job *domain.Job, shard *domain.Shard, site *domain.Site) (int, int, error) {
	col, err := w.builder.Build(ctx, shardRequest(job, shard, site))
	if err != nil {
		return 0, 0, err
	}
	images, err := col.Images(ctx)
	if err != nil {
		return 0, 0, err
	}

	// WindowEnd is exclusive; the object name carries the last covered day.
	name := domain.ExportName(job.Sensor, job.Variable, site.Ordinal,
		shard.WindowStart, shard.WindowEnd.AddDate(0, 0, -1))

	for i, img := range images {
		data, err := storage.EncodeImage(img)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to encode product: %w", err)
		}
		key := rasterKey(job.ID, name, img, i)
		if err := w.exports.Put(ctx, key, data, "application/octet-stream"); err != nil {
			metrics.RecordExport(string(domain.DestinationBucket), string(domain.ShardStatusFailed))
			return 0, 0, fmt.Errorf("failed to upload product: %w", err)
		}
	}
	if len(images) > 0 {
		metrics.RecordExport(string(domain.DestinationBucket), string(domain.ShardStatusSucceeded))
	}

	return len(images), 0, nil
}

// rasterKey places product objects under the owning job's prefix, one
// object per scene.
func rasterKey(jobID uuid.UUID, name string, img *raster.Image, idx int) string {
	suffix := fmt.Sprintf("%03d", idx)
	if img.Scene != nil {
		suffix = img.Scene.ID
	}
	return fmt.Sprintf("jobs/%s/%s_%s.bin", jobID, name, suffix)
}
