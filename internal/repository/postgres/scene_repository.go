package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/database"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// SceneRepository handles scene catalog operations in PostgreSQL
type SceneRepository struct {
	db *database.PostgresDB
}

// NewSceneRepository creates a new scene repository
func NewSceneRepository(db *database.PostgresDB) *SceneRepository {
	return &SceneRepository{db: db}
}

// Create inserts a scene into the catalog
func (r *SceneRepository) Create(ctx context.Context, scene *domain.Scene) error {
	footprint, err := marshalGeometry(scene.Footprint)
	if err != nil {
		return fmt.Errorf("failed to marshal footprint: %w", err)
	}
	bound := scene.Footprint.Bound()

	query := `
		INSERT INTO scenes (id, sensor, acquired_at, cloud_cover, footprint,
			min_lon, min_lat, max_lon, max_lat,
			view_zenith, sun_zenith, view_azimuth, sun_azimuth,
			tile_key, cloud_prob_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		scene.ID,
		scene.Sensor,
		scene.AcquiredAt,
		scene.CloudCover,
		footprint,
		bound.Min.Lon(),
		bound.Min.Lat(),
		bound.Max.Lon(),
		bound.Max.Lat(),
		scene.ViewZenith,
		scene.SunZenith,
		scene.ViewAzimuth,
		scene.SunAzimuth,
		scene.TileKey,
		scene.CloudProbKey,
		scene.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scene: %w", err)
	}
	return nil
}

// GetByID retrieves a scene by its catalog ID
func (r *SceneRepository) GetByID(ctx context.Context, id string) (*domain.Scene, error) {
	query := sceneSelect + ` WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id)
	scene, err := scanScene(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("scene")
		}
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}
	return scene, nil
}

// Search returns scenes matching the filter ordered by acquisition time.
// Date ranges are end exclusive and month ranges may wrap the year end.
func (r *SceneRepository) Search(ctx context.Context, filter domain.SceneFilter) ([]domain.Scene, error) {
	query := sceneSelect + ` WHERE sensor = $1`
	args := []interface{}{filter.Sensor}
	argIndex := 2

	if !filter.StartDate.IsZero() {
		query += fmt.Sprintf(" AND acquired_at >= $%d", argIndex)
		args = append(args, filter.StartDate)
		argIndex++
	}
	if !filter.EndDate.IsZero() {
		query += fmt.Sprintf(" AND acquired_at < $%d", argIndex)
		args = append(args, filter.EndDate)
		argIndex++
	}
	if filter.MaxCloudCover > 0 {
		query += fmt.Sprintf(" AND cloud_cover <= $%d", argIndex)
		args = append(args, filter.MaxCloudCover)
		argIndex++
	}
	if !filter.Bounds.IsZero() {
		query += fmt.Sprintf(" AND max_lon >= $%d AND min_lon <= $%d AND max_lat >= $%d AND min_lat <= $%d",
			argIndex, argIndex+1, argIndex+2, argIndex+3)
		args = append(args,
			filter.Bounds.Min.Lon(),
			filter.Bounds.Max.Lon(),
			filter.Bounds.Min.Lat(),
			filter.Bounds.Max.Lat(),
		)
		argIndex += 4
	}
	if filter.StartMonth > 0 && filter.EndMonth > 0 {
		if filter.StartMonth <= filter.EndMonth {
			query += fmt.Sprintf(" AND EXTRACT(MONTH FROM acquired_at) BETWEEN $%d AND $%d", argIndex, argIndex+1)
		} else {
			// Wrapped range such as November through February.
			query += fmt.Sprintf(" AND (EXTRACT(MONTH FROM acquired_at) >= $%d OR EXTRACT(MONTH FROM acquired_at) <= $%d)", argIndex, argIndex+1)
		}
		args = append(args, filter.StartMonth, filter.EndMonth)
		argIndex++
		argIndex++
	}

	query += " ORDER BY acquired_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search scenes: %w", err)
	}
	defer rows.Close()

	var scenes []domain.Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scene: %w", err)
		}
		scenes = append(scenes, *scene)
	}

	return scenes, nil
}

// Delete removes a scene from the catalog
func (r *SceneRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("scene")
	}
	return nil
}

const sceneSelect = `
	SELECT id, sensor, acquired_at, cloud_cover, footprint,
		view_zenith, sun_zenith, view_azimuth, sun_azimuth,
		tile_key, cloud_prob_key, created_at
	FROM scenes`

func scanScene(row pgx.Row) (*domain.Scene, error) {
	var scene domain.Scene
	var footprint []byte
	err := row.Scan(
		&scene.ID,
		&scene.Sensor,
		&scene.AcquiredAt,
		&scene.CloudCover,
		&footprint,
		&scene.ViewZenith,
		&scene.SunZenith,
		&scene.ViewAzimuth,
		&scene.SunAzimuth,
		&scene.TileKey,
		&scene.CloudProbKey,
		&scene.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	scene.Footprint, err = unmarshalGeometry(footprint)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal footprint: %w", err)
	}
	return &scene, nil
}
