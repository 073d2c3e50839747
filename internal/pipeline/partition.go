package pipeline

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/raster"
)

// PartitionSource provides the land cover mosaic for a region. The
// returned image carries one band named partition holding retrieval
// class codes; foreign-legend tiles are remapped by the source before
// mosaicking.
type PartitionSource interface {
	LandCover(ctx context.Context, bound orb.Bound, scaleMeters float64, version int) (*raster.Image, error)
}

// BuildPartition fetches the land cover mosaic and aligns it onto the
// working grid with nearest resampling. The builder attaches the
// returned band once per request; estimate and uncertainty dispatch
// both read it.
func BuildPartition(ctx context.Context, src PartitionSource, grid raster.Grid, version int) (*raster.Band, error) {
	mosaic, err := src.LandCover(ctx, grid.Bound(), grid.ScaleMeters(), version)
	if err != nil {
		return nil, fmt.Errorf("land cover mosaic: %w", err)
	}
	if mosaic == nil {
		return nil, fmt.Errorf("land cover source returned no mosaic")
	}
	if _, ok := mosaic.Band(BandPartition); !ok {
		return nil, fmt.Errorf("land cover mosaic has no %s band, got %v", BandPartition, mosaic.BandNames())
	}

	aligned := mosaic.Reproject(grid, raster.ResampleNearest)
	part, _ := aligned.Band(BandPartition)
	return part, nil
}
