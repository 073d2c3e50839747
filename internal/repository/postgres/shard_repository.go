package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/database"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// ShardRepository handles shard data operations in PostgreSQL
type ShardRepository struct {
	db *database.PostgresDB
}

// NewShardRepository creates a new shard repository
func NewShardRepository(db *database.PostgresDB) *ShardRepository {
	return &ShardRepository{db: db}
}

// CreateBatch inserts a job's shards in one round trip
func (r *ShardRepository) CreateBatch(ctx context.Context, shards []*domain.Shard) error {
	if len(shards) == 0 {
		return nil
	}

	query := `
		INSERT INTO shards (id, job_id, site_id, window_start, window_end, status,
			scene_count, sample_count, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	batch := &pgx.Batch{}
	for _, shard := range shards {
		batch.Queue(query,
			shard.ID,
			shard.JobID,
			shard.SiteID,
			shard.WindowStart,
			shard.WindowEnd,
			shard.Status,
			shard.SceneCount,
			shard.SampleCount,
			shard.Error,
			shard.CreatedAt,
			shard.UpdatedAt,
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range shards {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create shards: %w", err)
		}
	}
	return nil
}

// GetByID retrieves a shard by ID
func (r *ShardRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Shard, error) {
	query := `
		SELECT id, job_id, site_id, window_start, window_end, status,
			scene_count, sample_count, error, created_at, updated_at
		FROM shards
		WHERE id = $1
	`

	var shard domain.Shard
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&shard.ID,
		&shard.JobID,
		&shard.SiteID,
		&shard.WindowStart,
		&shard.WindowEnd,
		&shard.Status,
		&shard.SceneCount,
		&shard.SampleCount,
		&shard.Error,
		&shard.CreatedAt,
		&shard.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("shard")
		}
		return nil, fmt.Errorf("failed to get shard: %w", err)
	}

	return &shard, nil
}

// ListByJob retrieves a job's shards in window order
func (r *ShardRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Shard, error) {
	query := `
		SELECT id, job_id, site_id, window_start, window_end, status,
			scene_count, sample_count, error, created_at, updated_at
		FROM shards
		WHERE job_id = $1
		ORDER BY window_start ASC, site_id ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}
	defer rows.Close()

	var shards []domain.Shard
	for rows.Next() {
		var shard domain.Shard
		if err := rows.Scan(
			&shard.ID,
			&shard.JobID,
			&shard.SiteID,
			&shard.WindowStart,
			&shard.WindowEnd,
			&shard.Status,
			&shard.SceneCount,
			&shard.SampleCount,
			&shard.Error,
			&shard.CreatedAt,
			&shard.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shard: %w", err)
		}
		shards = append(shards, shard)
	}

	return shards, nil
}

// MarkRunning transitions a shard to running
func (r *ShardRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE shards SET status = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, domain.ShardStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark shard running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("shard")
	}
	return nil
}

// MarkSucceeded records a finished shard and what it produced
func (r *ShardRepository) MarkSucceeded(ctx context.Context, id uuid.UUID, sceneCount, sampleCount int) error {
	query := `
		UPDATE shards
		SET status = $2, scene_count = $3, sample_count = $4, error = '', updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, domain.ShardStatusSucceeded, sceneCount, sampleCount)
	if err != nil {
		return fmt.Errorf("failed to mark shard succeeded: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("shard")
	}
	return nil
}

// MarkFailed records a failed shard with its error
func (r *ShardRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `UPDATE shards SET status = $2, error = $3, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, domain.ShardStatusFailed, errMsg)
	if err != nil {
		return fmt.Errorf("failed to mark shard failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("shard")
	}
	return nil
}
