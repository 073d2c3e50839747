package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// gridEpsilon bounds the coordinate drift tolerated when comparing grids.
const gridEpsilon = 1e-9

// Grid describes a north-up geographic pixel grid in EPSG:4326.
// Row 0 is the northernmost row, column 0 the westernmost column.
type Grid struct {
	OriginLon float64 // west edge of column 0
	OriginLat float64 // north edge of row 0
	StepLon   float64 // cell width in degrees, positive
	StepLat   float64 // cell height in degrees, positive
	Width     int
	Height    int
}

// MetersPerDegree returns the local meters spanned by one degree of
// latitude and longitude at the given latitude.
func MetersPerDegree(lat float64) (mLat, mLon float64) {
	rad := lat * math.Pi / 180
	mLat = 111132.92 - 559.82*math.Cos(2*rad)
	mLon = 111412.84 * math.Cos(rad)
	return mLat, mLon
}

// NewGrid builds the smallest grid covering bound with cells of
// approximately scaleMeters on a side.
func NewGrid(bound orb.Bound, scaleMeters float64) (Grid, error) {
	if scaleMeters <= 0 {
		return Grid{}, fmt.Errorf("grid scale must be positive, got %g", scaleMeters)
	}
	if bound.Min.Lon() >= bound.Max.Lon() || bound.Min.Lat() >= bound.Max.Lat() {
		return Grid{}, fmt.Errorf("degenerate bound %v", bound)
	}

	latMid := (bound.Min.Lat() + bound.Max.Lat()) / 2
	mLat, mLon := MetersPerDegree(latMid)
	if mLon <= 0 {
		return Grid{}, fmt.Errorf("bound too close to the pole: mid latitude %g", latMid)
	}

	stepLat := scaleMeters / mLat
	stepLon := scaleMeters / mLon

	width := int(math.Ceil((bound.Max.Lon() - bound.Min.Lon()) / stepLon))
	height := int(math.Ceil((bound.Max.Lat() - bound.Min.Lat()) / stepLat))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	return Grid{
		OriginLon: bound.Min.Lon(),
		OriginLat: bound.Max.Lat(),
		StepLon:   stepLon,
		StepLat:   stepLat,
		Width:     width,
		Height:    height,
	}, nil
}

// Rescale returns a grid covering the same bound at a new scale.
func (g Grid) Rescale(scaleMeters float64) (Grid, error) {
	return NewGrid(g.Bound(), scaleMeters)
}

// Size returns the number of cells in the grid.
func (g Grid) Size() int {
	return g.Width * g.Height
}

// Bound returns the geographic extent covered by the grid.
func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginLon, g.OriginLat - float64(g.Height)*g.StepLat},
		Max: orb.Point{g.OriginLon + float64(g.Width)*g.StepLon, g.OriginLat},
	}
}

// Center returns the geographic center of the cell at (row, col).
func (g Grid) Center(row, col int) (lon, lat float64) {
	lon = g.OriginLon + (float64(col)+0.5)*g.StepLon
	lat = g.OriginLat - (float64(row)+0.5)*g.StepLat
	return lon, lat
}

// Index returns the cell containing the given coordinate, with ok false
// when the coordinate falls outside the grid.
func (g Grid) Index(lon, lat float64) (row, col int, ok bool) {
	col = int(math.Floor((lon - g.OriginLon) / g.StepLon))
	row = int(math.Floor((g.OriginLat - lat) / g.StepLat))
	if col < 0 || col >= g.Width || row < 0 || row >= g.Height {
		return 0, 0, false
	}
	return row, col, true
}

// Equal reports whether two grids describe the same cells.
func (g Grid) Equal(other Grid) bool {
	return g.Width == other.Width &&
		g.Height == other.Height &&
		math.Abs(g.OriginLon-other.OriginLon) < gridEpsilon &&
		math.Abs(g.OriginLat-other.OriginLat) < gridEpsilon &&
		math.Abs(g.StepLon-other.StepLon) < gridEpsilon &&
		math.Abs(g.StepLat-other.StepLat) < gridEpsilon
}

// ScaleMeters returns the approximate cell size in meters.
func (g Grid) ScaleMeters() float64 {
	latMid := g.OriginLat - float64(g.Height)*g.StepLat/2
	mLat, _ := MetersPerDegree(latMid)
	return g.StepLat * mLat
}

func (g Grid) String() string {
	return fmt.Sprintf("grid %dx%d @ (%.6f, %.6f) step (%.8f, %.8f)",
		g.Width, g.Height, g.OriginLon, g.OriginLat, g.StepLon, g.StepLat)
}
