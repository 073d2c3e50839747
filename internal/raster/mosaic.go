package raster

import (
	"context"
	"fmt"
)

// Mosaic flattens the collection into one image, taking for each cell
// the value of the last image in acquisition order holding a valid cell
// there. All materialized images must share one grid and band set.
func (c *Collection) Mosaic(ctx context.Context) (*Image, error) {
	images, err := c.Images(ctx)
	if err != nil {
		return nil, err
	}
	return MosaicImages(images)
}

// MosaicImages composites images back to front: later images win where
// both hold valid cells.
func MosaicImages(images []*Image) (*Image, error) {
	if len(images) == 0 {
		return nil, nil
	}

	base := images[0]
	for _, img := range images[1:] {
		if !img.Grid.Equal(base.Grid) {
			return nil, fmt.Errorf("mosaic grids differ: %v vs %v", img.Grid, base.Grid)
		}
	}

	out := base.Clone()
	for _, img := range images[1:] {
		for _, b := range img.Bands {
			i := out.bandIndex(b.Name)
			if i < 0 {
				return nil, fmt.Errorf("mosaic band sets differ: %q missing from %v",
					b.Name, out.BandNames())
			}
			dst := out.Bands[i]
			for idx, ok := range b.Mask {
				if ok {
					dst.Data[idx] = b.Data[idx]
					dst.Mask[idx] = true
				}
			}
		}
	}
	return out, nil
}
