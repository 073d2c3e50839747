package raster

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/canopylabs/canopy/internal/domain"
)

// Image is an ordered set of bands sharing one grid. Operations return
// new images with copied band storage, leaving the receiver untouched.
// Scene carries the catalog metadata of a materialized scene; synthetic
// images leave it nil.
type Image struct {
	Grid  Grid
	Bands []*Band
	Time  time.Time
	Scene *domain.Scene
	Props map[string]string
}

// NewImage creates an empty image on the given grid.
func NewImage(grid Grid, t time.Time) *Image {
	return &Image{
		Grid:  grid,
		Time:  t,
		Props: make(map[string]string),
	}
}

// Clone returns a deep copy of the image. Scene metadata is shared; it
// is never mutated after materialization.
func (img *Image) Clone() *Image {
	c := &Image{
		Grid:  img.Grid,
		Time:  img.Time,
		Scene: img.Scene,
		Bands: make([]*Band, len(img.Bands)),
		Props: make(map[string]string, len(img.Props)),
	}
	for i, b := range img.Bands {
		c.Bands[i] = b.Clone()
	}
	for k, v := range img.Props {
		c.Props[k] = v
	}
	return c
}

// BandNames returns the band names in order.
func (img *Image) BandNames() []string {
	names := make([]string, len(img.Bands))
	for i, b := range img.Bands {
		names[i] = b.Name
	}
	return names
}

// Band returns the named band.
func (img *Image) Band(name string) (*Band, bool) {
	if i := img.bandIndex(name); i >= 0 {
		return img.Bands[i], true
	}
	return nil, false
}

func (img *Image) bandIndex(name string) int {
	for i, b := range img.Bands {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// Select returns an image holding only the named bands, in the given order.
func (img *Image) Select(names ...string) (*Image, error) {
	c := NewImage(img.Grid, img.Time)
	c.Scene = img.Scene
	for k, v := range img.Props {
		c.Props[k] = v
	}
	for _, name := range names {
		i := img.bandIndex(name)
		if i < 0 {
			return nil, fmt.Errorf("band %q not present in %v", name, img.BandNames())
		}
		c.Bands = append(c.Bands, img.Bands[i].Clone())
	}
	return c, nil
}

// AddBands returns an image extended with the given bands. A band with a
// name already present replaces the existing one in place.
func (img *Image) AddBands(bands ...*Band) (*Image, error) {
	c := img.Clone()
	for _, b := range bands {
		if len(b.Data) != img.Grid.Size() {
			return nil, fmt.Errorf("band %q has %d cells, grid wants %d",
				b.Name, len(b.Data), img.Grid.Size())
		}
		if i := c.bandIndex(b.Name); i >= 0 {
			c.Bands[i] = b.Clone()
		} else {
			c.Bands = append(c.Bands, b.Clone())
		}
	}
	return c, nil
}

// RenameBand returns an image with one band renamed.
func (img *Image) RenameBand(oldName, newName string) (*Image, error) {
	i := img.bandIndex(oldName)
	if i < 0 {
		return nil, fmt.Errorf("band %q not present in %v", oldName, img.BandNames())
	}
	c := img.Clone()
	c.Bands[i].Name = newName
	return c, nil
}

// Clip returns an image with cells outside the polygon masked in every band.
func (img *Image) Clip(geom orb.Polygon) *Image {
	c := img.Clone()
	size := c.Grid.Size()
	for idx := 0; idx < size; idx++ {
		row, col := idx/c.Grid.Width, idx%c.Grid.Width
		lon, lat := c.Grid.Center(row, col)
		if planar.PolygonContains(geom, orb.Point{lon, lat}) {
			continue
		}
		for _, b := range c.Bands {
			b.Mask[idx] = false
		}
	}
	return c
}

// UpdateMask returns an image where cells invalid or zero in the mask
// band are masked in every band.
func (img *Image) UpdateMask(mask *Band) (*Image, error) {
	if len(mask.Data) != img.Grid.Size() {
		return nil, fmt.Errorf("mask band %q has %d cells, grid wants %d",
			mask.Name, len(mask.Data), img.Grid.Size())
	}
	c := img.Clone()
	for idx := range mask.Data {
		if mask.Mask[idx] && mask.Data[idx] != 0 {
			continue
		}
		for _, b := range c.Bands {
			b.Mask[idx] = false
		}
	}
	return c, nil
}

// Apply returns an image with every valid cell of the named band
// rewritten through fn.
func (img *Image) Apply(name string, fn func(float64) float64) (*Image, error) {
	i := img.bandIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("band %q not present in %v", name, img.BandNames())
	}
	c := img.Clone()
	c.Bands[i].Apply(fn)
	return c, nil
}

// Remap returns an image with the named band's values translated through
// the from/to lookup. Values missing from the lookup become defaultValue.
func (img *Image) Remap(name string, from, to []float64, defaultValue float64) (*Image, error) {
	if len(from) != len(to) {
		return nil, fmt.Errorf("remap lookup length mismatch: %d from, %d to", len(from), len(to))
	}
	i := img.bandIndex(name)
	if i < 0 {
		return nil, fmt.Errorf("band %q not present in %v", name, img.BandNames())
	}

	lookup := make(map[float64]float64, len(from))
	for k := range from {
		lookup[from[k]] = to[k]
	}

	c := img.Clone()
	b := c.Bands[i]
	for idx, ok := range b.Mask {
		if !ok {
			continue
		}
		if v, hit := lookup[b.Data[idx]]; hit {
			b.Data[idx] = v
		} else {
			b.Data[idx] = defaultValue
		}
	}
	return c, nil
}
