package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pkg/metrics"
	"github.com/canopylabs/canopy/internal/raster"
)

// SceneStore lists scene metadata from the archive index.
type SceneStore interface {
	Search(ctx context.Context, filter domain.SceneFilter) ([]domain.Scene, error)
}

// TileReader fetches stored band payloads by object key.
type TileReader interface {
	GetImage(ctx context.Context, key string) (*raster.Image, error)
}

// Archive serves catalog scenes from the Postgres index and the object
// store tile payloads.
type Archive struct {
	scenes SceneStore
	tiles  TileReader
	logger *zap.Logger
}

// NewArchive creates the archive catalog.
func NewArchive(scenes SceneStore, tiles TileReader, logger *zap.Logger) *Archive {
	return &Archive{scenes: scenes, tiles: tiles, logger: logger}
}

// Search lists scenes matching the filter, in no particular order.
func (a *Archive) Search(ctx context.Context, filter domain.SceneFilter) ([]domain.Scene, error) {
	scenes, err := a.scenes.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search scenes: %w", err)
	}
	a.logger.Debug("catalog search",
		zap.String("sensor", filter.Sensor),
		zap.Int("matches", len(scenes)))
	return scenes, nil
}

// Load materializes one scene's band payload.
func (a *Archive) Load(ctx context.Context, scene domain.Scene) (*raster.Image, error) {
	if scene.TileKey == "" {
		return nil, fmt.Errorf("scene %s has no tile key", scene.ID)
	}

	img, err := a.tiles.GetImage(ctx, scene.TileKey)
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", scene.ID, err)
	}

	sc := scene
	img.Scene = &sc
	if img.Time.IsZero() {
		img.Time = scene.AcquiredAt
	}
	metrics.RecordScene(scene.Sensor)
	return img, nil
}

// LoadCloudProbability materializes the scene's cloud probability
// companion. Scenes without one return nil, not an error.
func (a *Archive) LoadCloudProbability(ctx context.Context, scene domain.Scene) (*raster.Image, error) {
	if scene.CloudProbKey == "" {
		return nil, nil
	}

	img, err := a.tiles.GetImage(ctx, scene.CloudProbKey)
	if err != nil {
		return nil, fmt.Errorf("load cloud probability for %s: %w", scene.ID, err)
	}
	return img, nil
}
