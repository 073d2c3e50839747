package pipeline

import (
	"fmt"
	"math"

	"github.com/canopylabs/canopy/internal/nnet"
	"github.com/canopylabs/canopy/internal/raster"
	"github.com/canopylabs/canopy/internal/sensor"
)

// Bands the builder attaches alongside the sensor's own.
const (
	BandDate             = "date"
	BandQC               = "QC"
	BandLongitude        = "longitude"
	BandLatitude         = "latitude"
	BandPartition        = "partition"
	BandCloudProbability = "cloud_probability"

	BandCosVZA = "cosVZA"
	BandCosSZA = "cosSZA"
	BandCosRAA = "cosRAA"
)

// QCDomainFlag is the QC bit set when any network input falls outside
// its domain range.
const QCDomainFlag = 1

// millisPerDay converts epoch milliseconds into fractional days.
const millisPerDay = 86400000.0

// ScaleBands maps the sensor's stored reflectance into network input
// units: scaled = raw*scale + offset.
func ScaleBands(img *raster.Image, cfg *sensor.Config) (*raster.Image, error) {
	out := img
	var err error
	for _, name := range cfg.SpectralBands() {
		out, err = out.Apply(name, func(v float64) float64 {
			return v*cfg.Scale + cfg.Offset
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DomainFlags attaches or extends the QC band. The domain flag bit is
// set for every pixel with any input band outside its training domain.
// Conditioning only sets bits: an existing QC band keeps the flags it
// carries. Out-of-domain pixels stay valid; the flag is soft.
func DomainFlags(img *raster.Image, dom *nnet.Domain) (*raster.Image, error) {
	size := img.Grid.Size()
	qc := raster.NewBand(BandQC, size)
	if prev, ok := img.Band(BandQC); ok {
		copy(qc.Data, prev.Data)
		copy(qc.Mask, prev.Mask)
	}

	inputs := make([]*raster.Band, len(dom.Bands))
	for i, name := range dom.Bands {
		b, ok := img.Band(name)
		if !ok {
			return nil, fmt.Errorf("domain band %q not in image %v", name, img.BandNames())
		}
		inputs[i] = b
	}

	for idx := 0; idx < size; idx++ {
		allValid := true
		outOfDomain := false
		for i, b := range inputs {
			if !b.Mask[idx] {
				allValid = false
				break
			}
			if b.Data[idx] < dom.Min[i] || b.Data[idx] > dom.Max[i] {
				outOfDomain = true
			}
		}
		if !allValid {
			qc.Mask[idx] = false
			continue
		}
		if outOfDomain {
			qc.Data[idx] = float64(int(qc.Data[idx]) | QCDomainFlag)
		}
	}

	return img.AddBands(qc)
}

// MaskLand masks every band where the partition band is invalid or
// class 0 (not land). Masked pixels are no-data through the rest of the
// pipeline.
func MaskLand(img *raster.Image, partition *raster.Band) (*raster.Image, error) {
	if len(partition.Data) != img.Grid.Size() {
		return nil, fmt.Errorf("partition band has %d cells, grid wants %d",
			len(partition.Data), img.Grid.Size())
	}

	land := raster.NewBand("land", img.Grid.Size())
	for idx := range partition.Data {
		if partition.Mask[idx] && partition.Data[idx] != 0 {
			land.Data[idx] = 1
		} else {
			land.Data[idx] = 0
		}
	}
	return img.UpdateMask(land)
}

// MaskClear masks every band where the sensor's QA band fails the
// clear-sky test.
func MaskClear(img *raster.Image, cfg *sensor.Config) (*raster.Image, error) {
	qa, ok := img.Band(cfg.QABand)
	if !ok {
		return nil, fmt.Errorf("QA band %q not in image %v", cfg.QABand, img.BandNames())
	}

	clear := raster.NewBand("clear", img.Grid.Size())
	for idx := range qa.Data {
		if qa.Mask[idx] && cfg.IsClear(qa.Data[idx]) {
			clear.Data[idx] = 1
		}
	}
	return img.UpdateMask(clear)
}

// AddDateBand attaches the acquisition time as fractional days since
// the Unix epoch, constant over the image.
func AddDateBand(img *raster.Image) (*raster.Image, error) {
	days := float64(img.Time.UnixMilli()) / millisPerDay
	return img.AddBands(raster.ConstantBand(BandDate, img.Grid.Size(), days))
}

// AddCoordinateBands attaches per-pixel longitude and latitude bands
// from the image's grid cell centers.
func AddCoordinateBands(img *raster.Image) (*raster.Image, error) {
	size := img.Grid.Size()
	lon := raster.NewBand(BandLongitude, size)
	lat := raster.NewBand(BandLatitude, size)
	for idx := 0; idx < size; idx++ {
		row, col := idx/img.Grid.Width, idx%img.Grid.Width
		lon.Data[idx], lat.Data[idx] = img.Grid.Center(row, col)
	}
	return img.AddBands(lon, lat)
}

// AddGeometryBands attaches the scene's mean observation geometry as
// cosine bands. The angles come from catalog metadata, so the bands are
// constant per scene.
func AddGeometryBands(img *raster.Image) (*raster.Image, error) {
	if img.Scene == nil {
		return nil, fmt.Errorf("image has no scene metadata for geometry bands")
	}

	size := img.Grid.Size()
	rad := math.Pi / 180
	return img.AddBands(
		raster.ConstantBand(BandCosVZA, size, math.Cos(img.Scene.ViewZenith*rad)),
		raster.ConstantBand(BandCosSZA, size, math.Cos(img.Scene.SunZenith*rad)),
		raster.ConstantBand(BandCosRAA, size, math.Cos((img.Scene.ViewAzimuth-img.Scene.SunAzimuth)*rad)),
	)
}
