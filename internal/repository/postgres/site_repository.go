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

// SiteRepository handles site data operations in PostgreSQL
type SiteRepository struct {
	db *database.PostgresDB
}

// NewSiteRepository creates a new site repository
func NewSiteRepository(db *database.PostgresDB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Create creates a new site and assigns its ordinal
func (r *SiteRepository) Create(ctx context.Context, site *domain.Site) error {
	geom, err := marshalGeometry(site.Geometry)
	if err != nil {
		return err
	}
	bound := site.Geometry.Bound()

	query := `
		INSERT INTO sites (id, name, description, geometry, min_lon, min_lat, max_lon, max_lat,
			time_start, time_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ordinal
	`

	err = r.db.Pool.QueryRow(ctx, query,
		site.ID,
		site.Name,
		site.Description,
		geom,
		bound.Min.Lon(),
		bound.Min.Lat(),
		bound.Max.Lon(),
		bound.Max.Lat(),
		site.TimeStart,
		site.TimeEnd,
		site.CreatedAt,
		site.UpdatedAt,
	).Scan(&site.Ordinal)
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}

	return nil
}

// GetByID retrieves a site by ID
func (r *SiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	query := `
		SELECT id, ordinal, name, description, geometry, time_start, time_end, created_at, updated_at
		FROM sites
		WHERE id = $1
	`
	return r.scanSite(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByOrdinal retrieves a site by its registration ordinal
func (r *SiteRepository) GetByOrdinal(ctx context.Context, ordinal int) (*domain.Site, error) {
	query := `
		SELECT id, ordinal, name, description, geometry, time_start, time_end, created_at, updated_at
		FROM sites
		WHERE ordinal = $1
	`
	return r.scanSite(r.db.Pool.QueryRow(ctx, query, ordinal))
}

// ListRange retrieves the sites with ordinals in [from, to], in ordinal order
func (r *SiteRepository) ListRange(ctx context.Context, from, to int) ([]domain.Site, error) {
	query := `
		SELECT id, ordinal, name, description, geometry, time_start, time_end, created_at, updated_at
		FROM sites
		WHERE ordinal >= $1 AND ordinal <= $2
		ORDER BY ordinal ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	return r.scanSites(rows)
}

// List retrieves sites with pagination
func (r *SiteRepository) List(ctx context.Context, limit, offset int) ([]domain.Site, int64, error) {
	var totalCount int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sites`).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count sites: %w", err)
	}

	query := `
		SELECT id, ordinal, name, description, geometry, time_start, time_end, created_at, updated_at
		FROM sites
		ORDER BY ordinal ASC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	sites, err := r.scanSites(rows)
	if err != nil {
		return nil, 0, err
	}
	return sites, totalCount, nil
}

// MaxOrdinal returns the highest assigned site ordinal, 0 when empty
func (r *SiteRepository) MaxOrdinal(ctx context.Context) (int, error) {
	var max int
	err := r.db.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(ordinal), 0) FROM sites`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max ordinal: %w", err)
	}
	return max, nil
}

// Update updates a site's mutable fields
func (r *SiteRepository) Update(ctx context.Context, site *domain.Site) error {
	geom, err := marshalGeometry(site.Geometry)
	if err != nil {
		return err
	}
	bound := site.Geometry.Bound()

	query := `
		UPDATE sites
		SET name = $2, description = $3, geometry = $4,
			min_lon = $5, min_lat = $6, max_lon = $7, max_lat = $8,
			time_start = $9, time_end = $10, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		site.ID,
		site.Name,
		site.Description,
		geom,
		bound.Min.Lon(),
		bound.Min.Lat(),
		bound.Max.Lon(),
		bound.Max.Lat(),
		site.TimeStart,
		site.TimeEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to update site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("site")
	}

	return nil
}

// Delete deletes a site
func (r *SiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("site")
	}
	return nil
}

func (r *SiteRepository) scanSite(row pgx.Row) (*domain.Site, error) {
	var site domain.Site
	var geom []byte
	err := row.Scan(
		&site.ID,
		&site.Ordinal,
		&site.Name,
		&site.Description,
		&geom,
		&site.TimeStart,
		&site.TimeEnd,
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("site")
		}
		return nil, fmt.Errorf("failed to get site: %w", err)
	}

	if site.Geometry, err = unmarshalGeometry(geom); err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *SiteRepository) scanSites(rows pgx.Rows) ([]domain.Site, error) {
	var sites []domain.Site
	for rows.Next() {
		var site domain.Site
		var geom []byte
		if err := rows.Scan(
			&site.ID,
			&site.Ordinal,
			&site.Name,
			&site.Description,
			&geom,
			&site.TimeStart,
			&site.TimeEnd,
			&site.CreatedAt,
			&site.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}

		var err error
		if site.Geometry, err = unmarshalGeometry(geom); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}
