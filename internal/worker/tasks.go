package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/canopylabs/canopy/internal/domain"
)

const (
	// TypeSamplingShard is the task type for sampling shards
	TypeSamplingShard = "shard:sample"
	// TypeMappingShard is the task type for mapping shards
	TypeMappingShard = "shard:map"
	// TypeSampleExport is the task type for CSV sample exports
	TypeSampleExport = "export:samples"
	// TypeRetentionCleanup is the task type for the retention sweep
	TypeRetentionCleanup = "cleanup:retention"
)

// ShardPayload names one shard to run. The worker reloads job and shard
// state from the database, so a redelivered task sees current status.
type ShardPayload struct {
	ShardID uuid.UUID `json:"shard_id"`
}

// NewSamplingShardTask creates a sampling shard task
func NewSamplingShardTask(payload *ShardPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shard payload: %w", err)
	}
	return asynq.NewTask(TypeSamplingShard, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// NewMappingShardTask creates a mapping shard task
func NewMappingShardTask(payload *ShardPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shard payload: %w", err)
	}
	return asynq.NewTask(TypeMappingShard, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// SampleExportPayload carries everything the CSV export needs, so the
// export runs even after its job row is gone.
type SampleExportPayload struct {
	JobID       uuid.UUID       `json:"job_id"`
	ShardID     uuid.UUID       `json:"shard_id"`
	SiteID      uuid.UUID       `json:"site_id"`
	SiteOrdinal int             `json:"site_ordinal"`
	Sensor      string          `json:"sensor"`
	Variable    domain.Variable `json:"variable"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
}

// NewSampleExportTask creates a sample export task
func NewSampleExportTask(payload *SampleExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sample export payload: %w", err)
	}
	return asynq.NewTask(TypeSampleExport, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// RetentionPayload is the payload for retention sweeps. A zero
// RetentionDays falls back to the configured default.
type RetentionPayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewRetentionTask creates a retention sweep task
func NewRetentionTask(payload *RetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal retention payload: %w", err)
	}
	return asynq.NewTask(TypeRetentionCleanup, data, asynq.MaxRetry(3), asynq.Timeout(1*time.Hour)), nil
}

// Enqueuer hands tasks to the queue. It backs the submission service's
// shard fan out and the shard worker's follow-up exports.
type Enqueuer struct {
	client      *asynq.Client
	shardQueue  string
	exportQueue string
}

// NewEnqueuer creates an enqueuer on the given queues. Empty queue
// names fall back to default and low.
func NewEnqueuer(client *asynq.Client, shardQueue, exportQueue string) *Enqueuer {
	if shardQueue == "" {
		shardQueue = "default"
	}
	if exportQueue == "" {
		exportQueue = "low"
	}
	return &Enqueuer{client: client, shardQueue: shardQueue, exportQueue: exportQueue}
}

// EnqueueShard enqueues one shard task of the given job kind
func (e *Enqueuer) EnqueueShard(ctx context.Context, kind domain.JobKind, shardID uuid.UUID) error {
	var (
		task *asynq.Task
		err  error
	)
	switch kind {
	case domain.JobKindSampling:
		task, err = NewSamplingShardTask(&ShardPayload{ShardID: shardID})
	case domain.JobKindMapping:
		task, err = NewMappingShardTask(&ShardPayload{ShardID: shardID})
	default:
		return fmt.Errorf("no shard task for job kind %q", kind)
	}
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(e.shardQueue))
	return err
}

// EnqueueSampleExport enqueues a CSV export of one shard's samples
func (e *Enqueuer) EnqueueSampleExport(ctx context.Context, payload *SampleExportPayload) error {
	task, err := NewSampleExportTask(payload)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task, asynq.Queue(e.exportQueue))
	return err
}
