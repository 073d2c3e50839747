package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/pipeline"
	"github.com/canopylabs/canopy/internal/raster"
	"github.com/canopylabs/canopy/internal/sensor"
)

// copernicusBand is the classification band carried by tiles coded in
// the Copernicus 100m discrete legend.
const copernicusBand = "discrete_classification"

// LandCoverStore lists land cover tiles intersecting a bound.
type LandCoverStore interface {
	FindTiles(ctx context.Context, bound orb.Bound, version int) ([]domain.LandCoverTile, error)
}

// LandCoverSource assembles partition mosaics from stored land cover
// tiles. Tiles in a foreign legend are remapped to retrieval classes on
// load; native tiles pass through.
type LandCoverSource struct {
	store  LandCoverStore
	tiles  TileReader
	logger *zap.Logger
}

// NewLandCoverSource creates the land cover partition source.
func NewLandCoverSource(store LandCoverStore, tiles TileReader, logger *zap.Logger) *LandCoverSource {
	return &LandCoverSource{store: store, tiles: tiles, logger: logger}
}

// LandCover builds the partition mosaic covering bound at the given
// scale. Areas with no tile coverage come back fully masked, which the
// land mask then treats as not-land.
func (s *LandCoverSource) LandCover(ctx context.Context, bound orb.Bound, scaleMeters float64, version int) (*raster.Image, error) {
	if !sensor.ValidLandCoverVersion(version) {
		return nil, fmt.Errorf("unknown land cover version %d, have %v", version, sensor.LandCoverVersions)
	}

	grid, err := raster.NewGrid(bound, scaleMeters)
	if err != nil {
		return nil, fmt.Errorf("land cover grid: %w", err)
	}

	tiles, err := s.store.FindTiles(ctx, bound, version)
	if err != nil {
		return nil, fmt.Errorf("find land cover tiles: %w", err)
	}
	s.logger.Debug("land cover lookup",
		zap.Int("version", version),
		zap.Int("tiles", len(tiles)))

	if len(tiles) == 0 {
		img := raster.NewImage(grid, time.Time{})
		img.Bands = append(img.Bands, raster.NewMaskedBand(pipeline.BandPartition, grid.Size()))
		return img, nil
	}

	aligned := make([]*raster.Image, 0, len(tiles))
	for _, tile := range tiles {
		img, err := s.tiles.GetImage(ctx, tile.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("load land cover tile %s: %w", tile.ID, err)
		}

		img, err = toPartition(img, tile.Legend)
		if err != nil {
			return nil, fmt.Errorf("land cover tile %s: %w", tile.ID, err)
		}
		aligned = append(aligned, img.Reproject(grid, raster.ResampleNearest))
	}

	return raster.MosaicImages(aligned)
}

// toPartition reduces a tile image to a single partition band in
// retrieval class codes.
func toPartition(img *raster.Image, legend domain.LandCoverLegend) (*raster.Image, error) {
	switch legend {
	case domain.LegendNative:
		return img.Select(pipeline.BandPartition)
	case domain.LegendCopernicus:
		out, err := img.Select(copernicusBand)
		if err != nil {
			return nil, err
		}
		from, to := sensor.CopernicusRemap()
		if out, err = out.Remap(copernicusBand, from, to, 0); err != nil {
			return nil, err
		}
		return out.RenameBand(copernicusBand, pipeline.BandPartition)
	default:
		return nil, fmt.Errorf("unknown land cover legend %q", legend)
	}
}
