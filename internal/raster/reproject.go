package raster

// ResampleMethod selects how cell values are aggregated on reprojection.
type ResampleMethod int

const (
	// ResampleMean averages contributing source cells. Target cells with
	// no contributor fall back to the nearest source cell.
	ResampleMean ResampleMethod = iota
	// ResampleNearest takes the source cell under the target cell center.
	ResampleNearest
)

func (m ResampleMethod) String() string {
	switch m {
	case ResampleMean:
		return "mean"
	case ResampleNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// Reproject resamples every band onto the target grid. Categorical bands
// must be reprojected with ResampleNearest to keep their codes intact.
func (img *Image) Reproject(target Grid, method ResampleMethod) *Image {
	out := NewImage(target, img.Time)
	out.Scene = img.Scene
	for k, v := range img.Props {
		out.Props[k] = v
	}

	for _, b := range img.Bands {
		switch method {
		case ResampleNearest:
			out.Bands = append(out.Bands, resampleNearest(b, img.Grid, target))
		default:
			out.Bands = append(out.Bands, resampleMean(b, img.Grid, target))
		}
	}
	return out
}

// ReprojectBands resamples with a per-band method choice, for images
// mixing continuous and categorical planes.
func (img *Image) ReprojectBands(target Grid, methods map[string]ResampleMethod, fallback ResampleMethod) *Image {
	out := NewImage(target, img.Time)
	out.Scene = img.Scene
	for k, v := range img.Props {
		out.Props[k] = v
	}

	for _, b := range img.Bands {
		method, ok := methods[b.Name]
		if !ok {
			method = fallback
		}
		switch method {
		case ResampleNearest:
			out.Bands = append(out.Bands, resampleNearest(b, img.Grid, target))
		default:
			out.Bands = append(out.Bands, resampleMean(b, img.Grid, target))
		}
	}
	return out
}

func resampleNearest(b *Band, from, to Grid) *Band {
	out := NewMaskedBand(b.Name, to.Size())
	for idx := 0; idx < to.Size(); idx++ {
		row, col := idx/to.Width, idx%to.Width
		lon, lat := to.Center(row, col)
		srcRow, srcCol, ok := from.Index(lon, lat)
		if !ok {
			continue
		}
		src := srcRow*from.Width + srcCol
		if !b.Mask[src] {
			continue
		}
		out.Data[idx] = b.Data[src]
		out.Mask[idx] = true
	}
	return out
}

func resampleMean(b *Band, from, to Grid) *Band {
	out := NewMaskedBand(b.Name, to.Size())
	sums := make([]float64, to.Size())
	counts := make([]int, to.Size())
	seen := make([]bool, to.Size())

	// Bin source cells into target cells by their centers.
	for idx := 0; idx < from.Size(); idx++ {
		row, col := idx/from.Width, idx%from.Width
		lon, lat := from.Center(row, col)
		dstRow, dstCol, ok := to.Index(lon, lat)
		if !ok {
			continue
		}
		dst := dstRow*to.Width + dstCol
		seen[dst] = true
		if !b.Mask[idx] {
			continue
		}
		sums[dst] += b.Data[idx]
		counts[dst]++
	}

	for idx := 0; idx < to.Size(); idx++ {
		if counts[idx] > 0 {
			out.Data[idx] = sums[idx] / float64(counts[idx])
			out.Mask[idx] = true
			continue
		}
		if seen[idx] {
			// Contributors existed but all were masked.
			continue
		}
		// No source center landed here: the target is finer than the
		// source, so fall back to the cell under the target center.
		row, col := idx/to.Width, idx%to.Width
		lon, lat := to.Center(row, col)
		srcRow, srcCol, ok := from.Index(lon, lat)
		if !ok {
			continue
		}
		src := srcRow*from.Width + srcCol
		if !b.Mask[src] {
			continue
		}
		out.Data[idx] = b.Data[src]
		out.Mask[idx] = true
	}
	return out
}
