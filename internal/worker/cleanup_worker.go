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
)

// staleAfter is how long a job may sit running without shard progress
// before the sweep fails it.
const staleAfter = 24 * time.Hour

// JobJanitor is the job surface the cleanup worker sweeps.
type JobJanitor interface {
	ListRunningBefore(ctx context.Context, cutoff time.Time) ([]domain.Job, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.Job, error)
	Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SamplePurger drops a job's warehouse rows.
type SamplePurger interface {
	DeleteByJob(ctx context.Context, jobID string) error
}

// ObjectSweeper lists and removes a job's export objects.
type ObjectSweeper interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	Remove(ctx context.Context, key string) error
}

// CleanupWorker fails stalled jobs and purges expired ones together
// with their warehouse rows and export objects.
type CleanupWorker struct {
	logger        *zap.Logger
	jobs          JobJanitor
	samples       SamplePurger
	objects       ObjectSweeper
	retentionDays int
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(
	logger *zap.Logger,
	jobs JobJanitor,
	samples SamplePurger,
	objects ObjectSweeper,
	retentionDays int,
) *CleanupWorker {
	return &CleanupWorker{
		logger:        logger,
		jobs:          jobs,
		samples:       samples,
		objects:       objects,
		retentionDays: retentionDays,
	}
}

// ProcessRetentionTask processes a retention sweep task
func (w *CleanupWorker) ProcessRetentionTask(ctx context.Context, t *asynq.Task) error {
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal retention payload: %w", err)
	}

	days := payload.RetentionDays
	if days <= 0 {
		days = w.retentionDays
	}

	stalled, err := w.failStalled(ctx)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	expired, err := w.jobs.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired jobs: %w", err)
	}

	purged := 0
	for _, job := range expired {
		if err := w.purge(ctx, job.ID); err != nil {
			// Keep sweeping; the next run retries this job.
			w.logger.Error("failed to purge job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
			continue
		}
		purged++
	}

	w.logger.Info("retention sweep completed",
		zap.Int("retention_days", days),
		zap.Int("stalled", stalled),
		zap.Int("expired", len(expired)),
		zap.Int("purged", purged))
	return nil
}

// failStalled settles jobs stuck running with no shard progress, so a
// crashed worker cannot pin a job open forever.
func (w *CleanupWorker) failStalled(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)
	stalled, err := w.jobs.ListRunningBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stalled jobs: %w", err)
	}

	for _, job := range stalled {
		msg := fmt.Sprintf("stalled: no shard progress since %s", job.UpdatedAt.UTC().Format(time.RFC3339))
		if err := w.jobs.Finish(ctx, job.ID, domain.JobStatusFailed, msg); err != nil {
			w.logger.Error("failed to settle stalled job",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
			continue
		}
		w.logger.Warn("settled stalled job",
			zap.String("job_id", job.ID.String()),
			zap.Time("last_update", job.UpdatedAt))
	}
	return len(stalled), nil
}

// purge drops a job's warehouse rows and export objects, then the job
// row itself. The row goes last so a partial purge is retried by the
// next sweep.
func (w *CleanupWorker) purge(ctx context.Context, id uuid.UUID) error {
	if err := w.samples.DeleteByJob(ctx, id.String()); err != nil {
		return fmt.Errorf("failed to drop warehouse rows: %w", err)
	}

	keys, err := w.objects.ListKeys(ctx, "jobs/"+id.String()+"/")
	if err != nil {
		return fmt.Errorf("failed to list export objects: %w", err)
	}
	for _, key := range keys {
		if err := w.objects.Remove(ctx, key); err != nil {
			return fmt.Errorf("failed to remove export object: %w", err)
		}
	}

	if err := w.jobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
