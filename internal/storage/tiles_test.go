package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/raster"
)

func TestImagePayloadRoundTrip(t *testing.T) {
	grid := raster.Grid{
		OriginLon: -75.5,
		OriginLat: 45.5,
		StepLon:   0.001,
		StepLat:   0.001,
		Width:     3,
		Height:    2,
	}
	img := raster.NewImage(grid, time.Date(2021, 6, 15, 16, 45, 0, 0, time.UTC))
	img.Props["collection"] = "LANDSAT/LC08/C02/T1_L2"

	b := raster.NewBand("B4", grid.Size())
	copy(b.Data, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	b.Mask[4] = false
	img.Bands = append(img.Bands, b, raster.ConstantBand("QA_PIXEL", grid.Size(), 64))

	data, err := EncodeImage(img)
	require.NoError(t, err)

	got, err := DecodeImage(data)
	require.NoError(t, err)

	assert.True(t, got.Grid.Equal(grid))
	assert.True(t, got.Time.Equal(img.Time))
	assert.Equal(t, img.Props, got.Props)
	require.Equal(t, []string{"B4", "QA_PIXEL"}, got.BandNames())

	b4, _ := got.Band("B4")
	assert.Equal(t, b.Data, b4.Data)
	assert.Equal(t, b.Mask, b4.Mask)
	assert.Nil(t, got.Scene)
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := DecodeImage([]byte("not a tile payload"))
	assert.Error(t, err)
}
