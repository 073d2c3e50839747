package raster

import (
	"context"

	"github.com/canopylabs/canopy/internal/domain"
)

// Catalog provides scene discovery and band payload loading.
//
// Search returns matching scene metadata without touching payloads.
// Load materializes the full band stack for one scene on its native grid.
// LoadCloudProbability returns the companion cloud probability image for
// sensors that publish one, or nil when the scene has no companion.
type Catalog interface {
	Search(ctx context.Context, filter domain.SceneFilter) ([]domain.Scene, error)
	Load(ctx context.Context, scene domain.Scene) (*Image, error)
	LoadCloudProbability(ctx context.Context, scene domain.Scene) (*Image, error)
}
