package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
	"github.com/canopylabs/canopy/internal/sensor"
)

// JobRepository defines job repository operations
type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter *domain.JobFilter, limit, offset int) ([]domain.Job, int64, error)
	Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error
}

// ShardRepository defines shard repository operations
type ShardRepository interface {
	CreateBatch(ctx context.Context, shards []*domain.Shard) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Shard, error)
}

// ShardEnqueuer hands shard tasks to the queue
type ShardEnqueuer interface {
	EnqueueShard(ctx context.Context, kind domain.JobKind, shardID uuid.UUID) error
}

// JobService submits and tracks sampling and mapping jobs
type JobService struct {
	jobs     JobRepository
	shards   ShardRepository
	sites    SiteRepository
	sensors  *sensor.Registry
	enqueuer ShardEnqueuer
	logger   *zap.Logger
}

// NewJobService creates a new job service
func NewJobService(
	jobs JobRepository,
	shards ShardRepository,
	sites SiteRepository,
	sensors *sensor.Registry,
	enqueuer ShardEnqueuer,
	logger *zap.Logger,
) *JobService {
	return &JobService{
		jobs:     jobs,
		shards:   shards,
		sites:    sites,
		sensors:  sensors,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// SubmitSampling submits a job that samples product pixels into the
// warehouse or a CSV export.
func (s *JobService) SubmitSampling(ctx context.Context, sensorName string, variable domain.Variable, params domain.JobParams) (*domain.Job, error) {
	if params.Destination == "" {
		params.Destination = domain.DestinationWarehouse
	}
	return s.submit(ctx, domain.JobKindSampling, sensorName, variable, params)
}

// SubmitMapping submits a job that exports product rasters to the bucket.
func (s *JobService) SubmitMapping(ctx context.Context, sensorName string, variable domain.Variable, params domain.JobParams) (*domain.Job, error) {
	if params.Destination == "" {
		params.Destination = domain.DestinationBucket
	}
	if params.Destination == domain.DestinationWarehouse {
		return nil, apperrors.Validation("mapping jobs export rasters and cannot target the warehouse")
	}
	return s.submit(ctx, domain.JobKindMapping, sensorName, variable, params)
}

// submit validates the request, fans it out into per site and window
// shards and enqueues them. Destination and site range problems fail
// here, before any catalog work happens.
func (s *JobService) submit(ctx context.Context, kind domain.JobKind, sensorName string, variable domain.Variable, params domain.JobParams) (*domain.Job, error) {
	if _, err := s.sensors.Get(sensorName); err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("unknown sensor %q", sensorName))
	}
	if !variable.IsValid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown variable %q", variable))
	}
	if !params.Destination.IsValid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown destination %q", params.Destination))
	}
	if err := validateParams(&params); err != nil {
		return nil, err
	}

	sites, err := s.resolveSites(ctx, &params)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    domain.JobStatusPending,
		Sensor:    sensorName,
		Variable:  variable,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	shards, err := s.planShards(job, sites, now)
	if err != nil {
		return nil, err
	}
	job.ShardsTotal = len(shards)

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := s.shards.CreateBatch(ctx, shards); err != nil {
		return nil, fmt.Errorf("failed to create shards: %w", err)
	}

	for _, shard := range shards {
		if err := s.enqueuer.EnqueueShard(ctx, kind, shard.ID); err != nil {
			// Enqueued shards keep running; the job is marked failed so
			// the partial fan out is visible.
			s.logger.Error("failed to enqueue shard",
				zap.String("job_id", job.ID.String()),
				zap.String("shard_id", shard.ID.String()),
				zap.Error(err),
			)
			_ = s.jobs.Finish(ctx, job.ID, domain.JobStatusFailed, "shard enqueue failed: "+err.Error())
			return nil, fmt.Errorf("failed to enqueue shard: %w", err)
		}
	}

	s.logger.Info("job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("sensor", sensorName),
		zap.String("variable", string(variable)),
		zap.Int("sites", len(sites)),
		zap.Int("shards", len(shards)),
	)
	return job, nil
}

// resolveSites clamps the requested ordinal range to the registry and
// loads the sites it covers.
func (s *JobService) resolveSites(ctx context.Context, params *domain.JobParams) ([]domain.Site, error) {
	max, err := s.sites.MaxOrdinal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve site range: %w", err)
	}
	if max == 0 {
		return nil, apperrors.Validation("no sites registered")
	}

	from := params.SiteFrom
	if from < 1 {
		from = 1
	}
	to := params.SiteTo
	if to < 1 || to > max {
		to = max
	}
	if from > to {
		return nil, apperrors.Validation(fmt.Sprintf("site range [%d, %d] is empty after clamping to %d registered sites", params.SiteFrom, params.SiteTo, max))
	}
	params.SiteFrom, params.SiteTo = from, to

	sites, err := s.sites.ListRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, apperrors.Validation(fmt.Sprintf("site range [%d, %d] matches no sites", from, to))
	}
	return sites, nil
}

// planShards resolves each site window and splits it into shard ranges
func (s *JobService) planShards(job *domain.Job, sites []domain.Site, now time.Time) ([]*domain.Shard, error) {
	var shards []*domain.Shard
	for i := range sites {
		site := &sites[i]
		window, err := DateWindow(site, job.Params)
		if err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("site %d (%s): %s", site.Ordinal, site.Name, err.Error()))
		}
		for _, r := range SplitDates(window.Start, window.End, job.Params.SplitUnit) {
			shards = append(shards, &domain.Shard{
				ID:          uuid.New(),
				JobID:       job.ID,
				SiteID:      site.ID,
				WindowStart: r.Start,
				WindowEnd:   r.End,
				Status:      domain.ShardStatusPending,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}
	if len(shards) == 0 {
		return nil, apperrors.Validation("job resolves to no shards")
	}
	return shards, nil
}

// validateParams checks the knobs shared by both job kinds
func validateParams(params *domain.JobParams) error {
	if params.MaxCloudCover < 0 || params.MaxCloudCover > 100 {
		return apperrors.Validation("max cloud cover must be within [0, 100]")
	}
	if params.InputScale < 0 || params.OutputScale < 0 {
		return apperrors.Validation("scales must be positive")
	}
	if params.BufferDays < 0 {
		return apperrors.Validation("buffer days must not be negative")
	}
	if (params.StartMonth == 0) != (params.EndMonth == 0) {
		return apperrors.Validation("start and end month must be set together")
	}
	if params.StartMonth < 0 || params.StartMonth > 12 || params.EndMonth < 0 || params.EndMonth > 12 {
		return apperrors.Validation("months must be within [1, 12]")
	}
	if (params.StartDate == nil) != (params.EndDate == nil) {
		return apperrors.Validation("start and end date must be set together")
	}
	if params.SplitUnit != "" && !params.SplitUnit.IsValid() {
		return apperrors.Validation(fmt.Sprintf("unknown split unit %q", params.SplitUnit))
	}
	if sp := params.Sampling; sp != nil {
		if sp.NumPixels < 0 {
			return apperrors.Validation("numPixels must not be negative")
		}
		if sp.Factor < 0 || sp.Factor > 1 {
			return apperrors.Validation("sampling factor must be within [0, 1]")
		}
	}
	return nil
}

// GetByID retrieves a job by ID
func (s *JobService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, id)
}

// GetWithShards retrieves a job together with its shards
func (s *JobService) GetWithShards(ctx context.Context, id uuid.UUID) (*domain.Job, []domain.Shard, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	shards, err := s.shards.ListByJob(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return job, shards, nil
}

// List retrieves jobs with filtering and pagination
func (s *JobService) List(ctx context.Context, filter *domain.JobFilter, limit, offset int) ([]domain.Job, int64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.jobs.List(ctx, filter, limit, offset)
}

// Cancel stops a job. Shards already picked up finish their current
// run; queued shards see the cancelled status and skip.
func (s *JobService) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusRunning {
		return apperrors.Conflict(fmt.Sprintf("job is already %s", job.Status))
	}

	if err := s.jobs.Finish(ctx, id, domain.JobStatusCancelled, "cancelled by request"); err != nil {
		return err
	}
	s.logger.Info("job cancelled", zap.String("job_id", id.String()))
	return nil
}
