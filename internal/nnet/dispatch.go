package nnet

import (
	"fmt"

	"github.com/canopylabs/canopy/internal/raster"
)

// Dispatch applies a bank over an image: every configured class's
// network is evaluated on the pixels carrying that partition value, and
// the per-class layers merge into one output band. Pixels whose class
// has no configured network stay masked, as do pixels with any masked
// input. Estimate and uncertainty dispatch for one product must read
// the same partition band.
func Dispatch(img *raster.Image, bank *Bank, partitionBand, outName string) (*raster.Band, error) {
	part, ok := img.Band(partitionBand)
	if !ok {
		return nil, fmt.Errorf("partition band %q not in image %v", partitionBand, img.BandNames())
	}

	size := img.Grid.Size()
	out := raster.NewMaskedBand(outName, size)

	for _, class := range bank.Classes() {
		net, _ := bank.Network(class)

		inputs := make([]*raster.Band, len(net.InputBands))
		for i, name := range net.InputBands {
			b, ok := img.Band(name)
			if !ok {
				return nil, fmt.Errorf("input band %q for class %d not in image %v", name, class, img.BandNames())
			}
			inputs[i] = b
		}

		vec := make([]float64, len(inputs))
		for idx := 0; idx < size; idx++ {
			if !part.Mask[idx] || int(part.Data[idx]) != class {
				continue
			}
			valid := true
			for i, b := range inputs {
				if !b.Mask[idx] {
					valid = false
					break
				}
				vec[i] = b.Data[idx]
			}
			if !valid {
				continue
			}

			y, err := net.Evaluate(vec)
			if err != nil {
				return nil, fmt.Errorf("class %d: %w", class, err)
			}
			out.Data[idx] = y
			out.Mask[idx] = true
		}
	}

	return out, nil
}
