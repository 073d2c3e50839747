package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/database"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// JobRepository handles job data operations in PostgreSQL
type JobRepository struct {
	db *database.PostgresDB
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *database.PostgresDB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal job params: %w", err)
	}

	query := `
		INSERT INTO jobs (id, kind, status, sensor, variable, params,
			shards_total, shards_done, shards_failed, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.Status,
		job.Sensor,
		job.Variable,
		params,
		job.ShardsTotal,
		job.ShardsDone,
		job.ShardsFailed,
		job.Error,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, kind, status, sensor, variable, params,
			shards_total, shards_done, shards_failed, error,
			created_at, updated_at, started_at, finished_at
		FROM jobs
		WHERE id = $1
	`
	return r.scanJob(r.db.Pool.QueryRow(ctx, query, id))
}

// List retrieves jobs with filtering, newest first
func (r *JobRepository) List(ctx context.Context, filter *domain.JobFilter, limit, offset int) ([]domain.Job, int64, error) {
	baseQuery := `FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	if filter != nil {
		if filter.Kind != "" {
			baseQuery += fmt.Sprintf(" AND kind = $%d", argIndex)
			args = append(args, filter.Kind)
			argIndex++
		}
		if filter.Status != "" {
			baseQuery += fmt.Sprintf(" AND status = $%d", argIndex)
			args = append(args, filter.Status)
			argIndex++
		}
		if filter.Sensor != "" {
			baseQuery += fmt.Sprintf(" AND sensor = $%d", argIndex)
			args = append(args, filter.Sensor)
			argIndex++
		}
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var totalCount int64
	if err := r.db.Pool.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, kind, status, sensor, variable, params,
			shards_total, shards_done, shards_failed, error,
			created_at, updated_at, started_at, finished_at
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, baseQuery, argIndex, argIndex+1)
	args = append(args, limit, offset)

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobRow(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, totalCount, nil
}

// SetShardsTotal records how many shards the job fans out into
func (r *JobRepository) SetShardsTotal(ctx context.Context, id uuid.UUID, total int) error {
	query := `UPDATE jobs SET shards_total = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, id, total)
	if err != nil {
		return fmt.Errorf("failed to set shards total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("job")
	}
	return nil
}

// MarkStarted transitions a pending job to running
func (r *JobRepository) MarkStarted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = $2, started_at = COALESCE(started_at, NOW()), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, domain.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to mark job started: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("job")
	}
	return nil
}

// Finish transitions a job to a terminal status
func (r *JobRepository) Finish(ctx context.Context, id uuid.UUID, status domain.JobStatus, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $2, error = $3, finished_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("job")
	}
	return nil
}

// RecordShardOutcome atomically bumps the done or failed counter and
// returns the updated job, so the caller can finalize when the last
// shard lands.
func (r *JobRepository) RecordShardOutcome(ctx context.Context, id uuid.UUID, failed bool) (*domain.Job, error) {
	column := "shards_done"
	if failed {
		column = "shards_failed"
	}

	query := fmt.Sprintf(`
		UPDATE jobs
		SET %s = %s + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING id, kind, status, sensor, variable, params,
			shards_total, shards_done, shards_failed, error,
			created_at, updated_at, started_at, finished_at
	`, column, column)

	return r.scanJob(r.db.Pool.QueryRow(ctx, query, id))
}

// ListRunningBefore lists running jobs not updated since the cutoff
func (r *JobRepository) ListRunningBefore(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	query := `
		SELECT id, kind, status, sensor, variable, params,
			shards_total, shards_done, shards_failed, error,
			created_at, updated_at, started_at, finished_at
		FROM jobs
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, domain.JobStatusRunning, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// ListFinishedBefore lists terminal jobs older than the cutoff, for
// the retention sweep to purge
func (r *JobRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]domain.Job, error) {
	query := `
		SELECT id, kind, status, sensor, variable, params,
			shards_total, shards_done, shards_failed, error,
			created_at, updated_at, started_at, finished_at
		FROM jobs
		WHERE status = ANY($1) AND finished_at IS NOT NULL AND finished_at < $2
		ORDER BY finished_at ASC
	`

	terminal := []string{
		string(domain.JobStatusCompleted),
		string(domain.JobStatusPartial),
		string(domain.JobStatusFailed),
		string(domain.JobStatusCancelled),
	}
	rows, err := r.db.Pool.Query(ctx, query, terminal, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := r.scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// Delete removes a job and its shards
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM shards WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job shards: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("job")
	}
	return tx.Commit(ctx)
}

func (r *JobRepository) scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var params []byte
	err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Status,
		&job.Sensor,
		&job.Variable,
		&params,
		&job.ShardsTotal,
		&job.ShardsDone,
		&job.ShardsFailed,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("job")
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job params: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) scanJobRow(rows pgx.Rows) (*domain.Job, error) {
	var job domain.Job
	var params []byte
	if err := rows.Scan(
		&job.ID,
		&job.Kind,
		&job.Status,
		&job.Sensor,
		&job.Variable,
		&params,
		&job.ShardsTotal,
		&job.ShardsDone,
		&job.ShardsFailed,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	if err := json.Unmarshal(params, &job.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job params: %w", err)
	}
	return &job, nil
}
