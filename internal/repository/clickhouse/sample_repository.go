package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/database"
)

// SampleRepository handles pixel sample data operations in ClickHouse
type SampleRepository struct {
	db *database.ClickHouseDB
}

// NewSampleRepository creates a new sample repository
func NewSampleRepository(db *database.ClickHouseDB) *SampleRepository {
	return &SampleRepository{db: db}
}

const sampleColumns = `id, job_id, shard_id, site_id, scene_id, sensor, variable, band,
	acquired_at, longitude, latitude, value, qc, partition, created_at`

// CreateBatch inserts one shard's samples in a single batch
func (r *SampleRepository) CreateBatch(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := r.db.PrepareBatch(ctx, `INSERT INTO samples (`+sampleColumns+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, s := range samples {
		if err := batch.Append(
			s.ID,
			s.JobID,
			s.ShardID,
			s.SiteID,
			s.SceneID,
			s.Sensor,
			s.Variable,
			s.Band,
			s.AcquiredAt,
			s.Longitude,
			s.Latitude,
			s.Value,
			s.QC,
			s.Partition,
			s.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// List retrieves samples with filtering and pagination
func (r *SampleRepository) List(ctx context.Context, filter domain.SampleFilter) ([]domain.Sample, int64, error) {
	conditions := []string{"job_id = ?"}
	args := []interface{}{filter.JobID}

	if filter.SiteID != "" {
		conditions = append(conditions, "site_id = ?")
		args = append(args, filter.SiteID)
	}
	if filter.Band != "" {
		conditions = append(conditions, "band = ?")
		args = append(args, filter.Band)
	}
	if !filter.StartDate.IsZero() {
		conditions = append(conditions, "acquired_at >= ?")
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		conditions = append(conditions, "acquired_at < ?")
		args = append(args, filter.EndDate)
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT count() FROM samples WHERE %s", whereClause)
	var totalCount uint64
	row := r.db.QueryRow(ctx, countQuery, args...)
	if err := row.Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count samples: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM samples
		WHERE %s
		ORDER BY acquired_at ASC, site_id ASC, band ASC, id ASC
		LIMIT ? OFFSET ?
	`, sampleColumns, whereClause)

	args = append(args, limit, filter.Offset)

	var samples []domain.Sample
	if err := r.db.Select(ctx, &samples, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list samples: %w", err)
	}

	return samples, int64(totalCount), nil
}

// CountByJob returns how many samples a job has landed
func (r *SampleRepository) CountByJob(ctx context.Context, jobID string) (int64, error) {
	var count uint64
	row := r.db.QueryRow(ctx, `SELECT count() FROM samples WHERE job_id = ?`, jobID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return int64(count), nil
}

// DeleteByJob drops a job's samples. Used by retention cleanup; routine
// deletes are left to the table TTL.
func (r *SampleRepository) DeleteByJob(ctx context.Context, jobID string) error {
	return r.db.Exec(ctx, `ALTER TABLE samples DELETE WHERE job_id = ?`, jobID)
}
