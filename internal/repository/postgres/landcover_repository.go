package postgres

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/database"
)

// LandCoverRepository handles land cover tile metadata in PostgreSQL
type LandCoverRepository struct {
	db *database.PostgresDB
}

// NewLandCoverRepository creates a new land cover repository
func NewLandCoverRepository(db *database.PostgresDB) *LandCoverRepository {
	return &LandCoverRepository{db: db}
}

// CreateTile registers a land cover tile
func (r *LandCoverRepository) CreateTile(ctx context.Context, tile *domain.LandCoverTile) error {
	footprint, err := marshalGeometry(tile.Footprint)
	if err != nil {
		return fmt.Errorf("failed to marshal footprint: %w", err)
	}
	bound := tile.Footprint.Bound()

	query := `
		INSERT INTO landcover_tiles (id, version, legend, footprint,
			min_lon, min_lat, max_lon, max_lat, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		tile.ID,
		tile.Version,
		tile.Legend,
		footprint,
		bound.Min.Lon(),
		bound.Min.Lat(),
		bound.Max.Lon(),
		bound.Max.Lat(),
		tile.ObjectKey,
		tile.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create land cover tile: %w", err)
	}
	return nil
}

// FindTiles returns the tiles of one map version overlapping the bound
func (r *LandCoverRepository) FindTiles(ctx context.Context, bound orb.Bound, version int) ([]domain.LandCoverTile, error) {
	query := `
		SELECT id, version, legend, footprint, object_key, created_at
		FROM landcover_tiles
		WHERE version = $1
			AND max_lon >= $2 AND min_lon <= $3
			AND max_lat >= $4 AND min_lat <= $5
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query,
		version,
		bound.Min.Lon(),
		bound.Max.Lon(),
		bound.Min.Lat(),
		bound.Max.Lat(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find land cover tiles: %w", err)
	}
	defer rows.Close()

	var tiles []domain.LandCoverTile
	for rows.Next() {
		var tile domain.LandCoverTile
		var footprint []byte
		if err := rows.Scan(
			&tile.ID,
			&tile.Version,
			&tile.Legend,
			&footprint,
			&tile.ObjectKey,
			&tile.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan land cover tile: %w", err)
		}
		tile.Footprint, err = unmarshalGeometry(footprint)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal footprint: %w", err)
		}
		tiles = append(tiles, tile)
	}

	return tiles, nil
}
