package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/domain"
)

func createTestTile(version int, legend domain.LandCoverLegend) *domain.LandCoverTile {
	return &domain.LandCoverTile{
		ID:      uuid.New(),
		Version: version,
		Legend:  legend,
		Footprint: orb.Polygon{{
			{10, 49}, {11, 49}, {11, 50}, {10, 50}, {10, 49},
		}},
		ObjectKey: "landcover/" + uuid.New().String() + ".bin",
		CreatedAt: time.Now().UTC(),
	}
}

func TestLandCoverRepository_CreateAndFind(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewLandCoverRepository(db)
	ctx := context.Background()

	tile2020 := createTestTile(2020, domain.LegendCopernicus)
	tile2015 := createTestTile(2015, domain.LegendCopernicus)
	defer func() {
		_, _ = db.Pool.Exec(ctx, "DELETE FROM landcover_tiles WHERE id = $1", tile2020.ID)
		_, _ = db.Pool.Exec(ctx, "DELETE FROM landcover_tiles WHERE id = $1", tile2015.ID)
	}()

	require.NoError(t, repo.CreateTile(ctx, tile2020))
	require.NoError(t, repo.CreateTile(ctx, tile2015))

	found, err := repo.FindTiles(ctx, orb.Bound{
		Min: orb.Point{10.2, 49.2},
		Max: orb.Point{10.4, 49.4},
	}, 2020)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, tile2020.ID, found[0].ID)
	assert.Equal(t, domain.LegendCopernicus, found[0].Legend)
	assert.Equal(t, tile2020.Footprint, found[0].Footprint)

	disjoint, err := repo.FindTiles(ctx, orb.Bound{
		Min: orb.Point{20, 40},
		Max: orb.Point{21, 41},
	}, 2020)
	require.NoError(t, err)
	assert.Empty(t, disjoint)
}
