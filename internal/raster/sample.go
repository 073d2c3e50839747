package raster

import (
	"fmt"
	"math/rand"
	"sort"
)

// SampleOptions controls how pixels are drawn from an image.
type SampleOptions struct {
	// NumPixels draws an absolute count. Takes precedence over Factor.
	NumPixels int64
	// Factor draws a fraction of the candidate pixels.
	Factor float64
	// Seed fixes the draw. The zero seed is a valid fixed seed, so equal
	// inputs always produce equal draws.
	Seed int64
	// DropInvalid restricts candidates to pixels valid in every band.
	// Otherwise any pixel with at least one valid band is a candidate.
	DropInvalid bool
}

// PixelSample is one drawn pixel with its band values.
type PixelSample struct {
	Row       int
	Col       int
	Longitude float64
	Latitude  float64
	Values    map[string]float64
	Valid     map[string]bool
}

// Sample draws pixels from the image. The draw is deterministic for a
// given image and options. A draw over zero candidates returns an empty
// slice, not an error.
func (img *Image) Sample(opts SampleOptions) ([]PixelSample, error) {
	if opts.NumPixels < 0 {
		return nil, fmt.Errorf("negative pixel count %d", opts.NumPixels)
	}
	if opts.Factor < 0 || opts.Factor > 1 {
		return nil, fmt.Errorf("sample factor %g outside [0, 1]", opts.Factor)
	}

	candidates := img.candidacy(opts.DropInvalid)
	n := drawSize(opts, len(candidates))
	if n == 0 {
		return []PixelSample{}, nil
	}

	if n < len(candidates) {
		r := rand.New(rand.NewSource(opts.Seed))
		r.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		candidates = candidates[:n]
		// Row-major output order regardless of the draw order.
		sort.Ints(candidates)
	}

	samples := make([]PixelSample, 0, len(candidates))
	for _, idx := range candidates {
		row, col := idx/img.Grid.Width, idx%img.Grid.Width
		lon, lat := img.Grid.Center(row, col)

		s := PixelSample{
			Row:       row,
			Col:       col,
			Longitude: lon,
			Latitude:  lat,
			Values:    make(map[string]float64, len(img.Bands)),
			Valid:     make(map[string]bool, len(img.Bands)),
		}
		for _, b := range img.Bands {
			s.Valid[b.Name] = b.Mask[idx]
			if b.Mask[idx] {
				s.Values[b.Name] = b.Data[idx]
			}
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func (img *Image) candidacy(dropInvalid bool) []int {
	size := img.Grid.Size()
	candidates := make([]int, 0, size)

	for idx := 0; idx < size; idx++ {
		anyValid := false
		allValid := true
		for _, b := range img.Bands {
			if b.Mask[idx] {
				anyValid = true
			} else {
				allValid = false
			}
		}
		if dropInvalid {
			if allValid && len(img.Bands) > 0 {
				candidates = append(candidates, idx)
			}
		} else if anyValid {
			candidates = append(candidates, idx)
		}
	}
	return candidates
}

func drawSize(opts SampleOptions, candidates int) int {
	if opts.NumPixels > 0 {
		if int64(candidates) < opts.NumPixels {
			return candidates
		}
		return int(opts.NumPixels)
	}
	if opts.Factor > 0 {
		n := int(opts.Factor*float64(candidates) + 0.5)
		if n > candidates {
			return candidates
		}
		return n
	}
	return candidates
}
