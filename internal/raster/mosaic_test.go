package raster

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/domain"
)

func TestMosaicImagesLaterWins(t *testing.T) {
	g := testGrid(2, 2)

	first := testImage(g, map[string]float64{"B03": 1})
	second := NewImage(g, time.Time{})
	b := NewMaskedBand("B03", g.Size())
	b.Data[0] = 9
	b.Mask[0] = true
	second.Bands = append(second.Bands, b)

	out, err := MosaicImages([]*Image{first, second})
	require.NoError(t, err)

	ob, ok := out.Band("B03")
	require.True(t, ok)
	assert.Equal(t, 9.0, ob.Data[0])
	assert.Equal(t, 1.0, ob.Data[1])
	assert.Equal(t, 1.0, ob.Data[2])
	assert.Equal(t, 1.0, ob.Data[3])
}

func TestMosaicImagesEmpty(t *testing.T) {
	out, err := MosaicImages(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestMosaicImagesGridMismatch(t *testing.T) {
	a := testImage(testGrid(2, 2), map[string]float64{"B03": 1})
	b := testImage(testGrid(3, 3), map[string]float64{"B03": 2})

	_, err := MosaicImages([]*Image{a, b})
	assert.Error(t, err)
}

func TestMosaicImagesBandMismatch(t *testing.T) {
	g := testGrid(2, 2)
	a := testImage(g, map[string]float64{"B03": 1})
	b := testImage(g, map[string]float64{"B04": 2})

	_, err := MosaicImages([]*Image{a, b})
	assert.Error(t, err)
}

func TestCollectionMosaic(t *testing.T) {
	cat := &memCatalog{scenes: []domain.Scene{
		juneScene("S1", "sentinel2-sr", 1, 3),
		juneScene("S2", "sentinel2-sr", 2, 7),
	}}

	out, err := NewCollection(cat, "sentinel2-sr").Mosaic(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)

	// Later acquisition overwrites everywhere since both are fully valid
	ob, _ := out.Band("B03")
	for i := range ob.Data {
		assert.Equal(t, 7.0, ob.Data[i])
	}
}
