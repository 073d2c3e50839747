package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// createTestScene creates a scene footprinted over a small area near 10E 49N
func createTestScene(sensor string, acquired time.Time, cloudCover float64) *domain.Scene {
	id := fmt.Sprintf("%s_%s_%s", sensor, acquired.Format("20060102T150405"), uuid.New().String()[:8])
	return &domain.Scene{
		ID:         id,
		Sensor:     sensor,
		AcquiredAt: acquired,
		CloudCover: cloudCover,
		Footprint: orb.Polygon{{
			{9.8, 49.2}, {10.8, 49.2}, {10.8, 50.2}, {9.8, 50.2}, {9.8, 49.2},
		}},
		ViewZenith:  4.2,
		SunZenith:   32.7,
		ViewAzimuth: 104.1,
		SunAzimuth:  158.9,
		TileKey:     "tiles/" + id + ".bin",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestSceneRepository_CreateAndGet(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSceneRepository(db)
	ctx := context.Background()

	scene := createTestScene("landsat8-sr", time.Date(2021, 7, 1, 10, 30, 0, 0, time.UTC), 12.5)
	scene.CloudProbKey = "clouds/" + scene.ID + ".bin"
	defer cleanupScenes(t, db, scene.ID)

	require.NoError(t, repo.Create(ctx, scene))

	fetched, err := repo.GetByID(ctx, scene.ID)
	require.NoError(t, err)
	assert.Equal(t, scene.ID, fetched.ID)
	assert.Equal(t, scene.Sensor, fetched.Sensor)
	assert.Equal(t, scene.Footprint, fetched.Footprint)
	assert.InDelta(t, 32.7, fetched.SunZenith, 1e-9)
	assert.Equal(t, scene.TileKey, fetched.TileKey)
	assert.Equal(t, scene.CloudProbKey, fetched.CloudProbKey)

	_, err = repo.GetByID(ctx, "no-such-scene")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSceneRepository_SearchWindow(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSceneRepository(db)
	ctx := context.Background()

	sensor := "search-window-" + uuid.New().String()[:8]
	inWindow := createTestScene(sensor, time.Date(2021, 7, 1, 10, 30, 0, 0, time.UTC), 10)
	onEnd := createTestScene(sensor, time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC), 10)
	cloudy := createTestScene(sensor, time.Date(2021, 7, 15, 10, 30, 0, 0, time.UTC), 95)
	defer cleanupScenes(t, db, inWindow.ID, onEnd.ID, cloudy.ID)

	require.NoError(t, repo.Create(ctx, inWindow))
	require.NoError(t, repo.Create(ctx, onEnd))
	require.NoError(t, repo.Create(ctx, cloudy))

	// The end date is exclusive, so the August 1st scene stays out.
	scenes, err := repo.Search(ctx, domain.SceneFilter{
		Sensor:        sensor,
		StartDate:     time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC),
		MaxCloudCover: 80,
	})
	require.NoError(t, err)
	require.Len(t, scenes, 1)
	assert.Equal(t, inWindow.ID, scenes[0].ID)
}

func TestSceneRepository_SearchBounds(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSceneRepository(db)
	ctx := context.Background()

	sensor := "search-bounds-" + uuid.New().String()[:8]
	scene := createTestScene(sensor, time.Date(2021, 7, 1, 10, 30, 0, 0, time.UTC), 10)
	defer cleanupScenes(t, db, scene.ID)
	require.NoError(t, repo.Create(ctx, scene))

	overlapping, err := repo.Search(ctx, domain.SceneFilter{
		Sensor: sensor,
		Bounds: orb.Bound{Min: orb.Point{10, 49.5}, Max: orb.Point{10.5, 50}},
	})
	require.NoError(t, err)
	require.Len(t, overlapping, 1)

	disjoint, err := repo.Search(ctx, domain.SceneFilter{
		Sensor: sensor,
		Bounds: orb.Bound{Min: orb.Point{20, 40}, Max: orb.Point{21, 41}},
	})
	require.NoError(t, err)
	assert.Empty(t, disjoint)
}

func TestSceneRepository_SearchMonthWrap(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSceneRepository(db)
	ctx := context.Background()

	sensor := "search-months-" + uuid.New().String()[:8]
	november := createTestScene(sensor, time.Date(2020, 11, 12, 10, 30, 0, 0, time.UTC), 10)
	january := createTestScene(sensor, time.Date(2021, 1, 20, 10, 30, 0, 0, time.UTC), 10)
	june := createTestScene(sensor, time.Date(2021, 6, 5, 10, 30, 0, 0, time.UTC), 10)
	defer cleanupScenes(t, db, november.ID, january.ID, june.ID)

	require.NoError(t, repo.Create(ctx, november))
	require.NoError(t, repo.Create(ctx, january))
	require.NoError(t, repo.Create(ctx, june))

	wrapped, err := repo.Search(ctx, domain.SceneFilter{
		Sensor:     sensor,
		StartMonth: 11,
		EndMonth:   2,
	})
	require.NoError(t, err)
	require.Len(t, wrapped, 2)
	assert.Equal(t, november.ID, wrapped[0].ID)
	assert.Equal(t, january.ID, wrapped[1].ID)

	summer, err := repo.Search(ctx, domain.SceneFilter{
		Sensor:     sensor,
		StartMonth: 5,
		EndMonth:   7,
	})
	require.NoError(t, err)
	require.Len(t, summer, 1)
	assert.Equal(t, june.ID, summer[0].ID)
}

func TestSceneRepository_SearchLimit(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewSceneRepository(db)
	ctx := context.Background()

	sensor := "search-limit-" + uuid.New().String()[:8]
	base := time.Date(2021, 7, 1, 10, 30, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 4; i++ {
		scene := createTestScene(sensor, base.AddDate(0, 0, i), 10)
		ids = append(ids, scene.ID)
		require.NoError(t, repo.Create(ctx, scene))
	}
	defer cleanupScenes(t, db, ids...)

	scenes, err := repo.Search(ctx, domain.SceneFilter{Sensor: sensor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, ids[0], scenes[0].ID)
	assert.Equal(t, ids[1], scenes[1].ID)
}
