package nnet

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/raster"
)

func dispatchImage(w, h int, bands map[string][]float64) *raster.Image {
	g := raster.Grid{
		OriginLon: 0,
		OriginLat: 1,
		StepLon:   1.0 / float64(w),
		StepLat:   1.0 / float64(h),
		Width:     w,
		Height:    h,
	}
	img := raster.NewImage(g, time.Time{})
	for name, data := range bands {
		b := raster.NewBand(name, g.Size())
		copy(b.Data, data)
		img.Bands = append(img.Bands, b)
	}
	return img
}

func TestDispatchUniformClass(t *testing.T) {
	img := dispatchImage(2, 2, map[string][]float64{
		"B03":       {0.1, 0.2, 0.3, 0.4},
		"B04":       {0.4, 0.3, 0.2, 0.1},
		"partition": {3, 3, 3, 3},
	})
	bank := testBank(t, domain.NetworkKindEstimate, 3)

	out, err := Dispatch(img, bank, "partition", "LAI")
	require.NoError(t, err)
	assert.Equal(t, "LAI", out.Name)

	b03, _ := img.Band("B03")
	b04, _ := img.Band("B04")
	for i := 0; i < 4; i++ {
		require.True(t, out.Mask[i])
		assert.InDelta(t, math.Tanh(0.5*b03.Data[i]+0.5*b04.Data[i]), out.Data[i], 1e-6)
	}
}

func TestDispatchUnconfiguredClassMasked(t *testing.T) {
	img := dispatchImage(2, 2, map[string][]float64{
		"B03":       {0.1, 0.2, 0.3, 0.4},
		"B04":       {0.4, 0.3, 0.2, 0.1},
		"partition": {99, 99, 99, 99},
	})
	bank := testBank(t, domain.NetworkKindEstimate, 3)

	out, err := Dispatch(img, bank, "partition", "LAI")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.False(t, out.Mask[i])
	}
}

func TestDispatchMixedClasses(t *testing.T) {
	img := dispatchImage(2, 2, map[string][]float64{
		"B03":       {0.2, 0.2, 0.2, 0.2},
		"B04":       {0.6, 0.6, 0.6, 0.6},
		"partition": {1, 1, 2, 99},
	})

	negated := halfSumNet()
	negated.OutputWeights = []float64{-1}
	bank, err := NewBank("sentinel2-sr", domain.VariableLAI, domain.NetworkKindEstimate,
		map[int]*Network{1: halfSumNet(), 2: negated})
	require.NoError(t, err)

	out, err := Dispatch(img, bank, "partition", "LAI")
	require.NoError(t, err)

	want := math.Tanh(0.5*0.2 + 0.5*0.6)
	assert.InDelta(t, want, out.Data[0], 1e-6)
	assert.InDelta(t, want, out.Data[1], 1e-6)
	assert.InDelta(t, -want, out.Data[2], 1e-6)
	assert.False(t, out.Mask[3])
}

func TestDispatchMaskedInputsStayMasked(t *testing.T) {
	img := dispatchImage(2, 2, map[string][]float64{
		"B03":       {0.1, 0.2, 0.3, 0.4},
		"B04":       {0.4, 0.3, 0.2, 0.1},
		"partition": {3, 3, 3, 3},
	})
	b03, _ := img.Band("B03")
	b03.Mask[1] = false
	part, _ := img.Band("partition")
	part.Mask[2] = false

	out, err := Dispatch(img, testBank(t, domain.NetworkKindEstimate, 3), "partition", "LAI")
	require.NoError(t, err)
	assert.True(t, out.Mask[0])
	assert.False(t, out.Mask[1])
	assert.False(t, out.Mask[2])
	assert.True(t, out.Mask[3])
}

func TestDispatchMissingBands(t *testing.T) {
	img := dispatchImage(2, 2, map[string][]float64{
		"B03": {0.1, 0.2, 0.3, 0.4},
		"B04": {0.4, 0.3, 0.2, 0.1},
	})
	bank := testBank(t, domain.NetworkKindEstimate, 3)

	_, err := Dispatch(img, bank, "partition", "LAI")
	assert.Error(t, err)

	img = dispatchImage(2, 2, map[string][]float64{
		"B03":       {0.1, 0.2, 0.3, 0.4},
		"partition": {3, 3, 3, 3},
	})
	_, err = Dispatch(img, bank, "partition", "LAI")
	assert.Error(t, err)
}

func TestDispatchEstimateUncertaintyAlignment(t *testing.T) {
	img := dispatchImage(2, 2, map[string][]float64{
		"B03":       {0.1, 0.2, 0.3, 0.4},
		"B04":       {0.4, 0.3, 0.2, 0.1},
		"partition": {1, 99, 1, 0},
	})
	set, err := NewBankSet(
		testBank(t, domain.NetworkKindEstimate, 1),
		testBank(t, domain.NetworkKindUncertainty, 1),
	)
	require.NoError(t, err)

	est, err := Dispatch(img, set.Estimate, "partition", "LAI")
	require.NoError(t, err)
	unc, err := Dispatch(img, set.Uncertainty, "partition", domain.VariableLAI.UncertaintyBand())
	require.NoError(t, err)

	// Both layers resolve classes from the same partition band, so
	// their masks agree pixel for pixel.
	assert.Equal(t, est.Mask, unc.Mask)
	assert.Equal(t, "LAI_uncertainty", unc.Name)
}
