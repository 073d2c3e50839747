package nnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halfSumNet averages two bands through a single tanh unit with
// identity normalization on both ends.
func halfSumNet() *Network {
	return &Network{
		InputBands:    []string{"B03", "B04"},
		InputMin:      []float64{-1, -1},
		InputMax:      []float64{1, 1},
		HiddenWeights: [][]float64{{0.5, 0.5}},
		HiddenBias:    []float64{0},
		OutputWeights: []float64{1},
		OutputBias:    0,
		OutputMin:     -1,
		OutputMax:     1,
	}
}

func TestEvaluateHalfSum(t *testing.T) {
	net := halfSumNet()
	require.NoError(t, net.Validate())

	cases := [][2]float64{{0, 0}, {0.2, 0.4}, {-0.5, 0.9}, {1, 1}, {-1, -1}}
	for _, c := range cases {
		y, err := net.Evaluate([]float64{c[0], c[1]})
		require.NoError(t, err)
		assert.InDelta(t, math.Tanh(0.5*c[0]+0.5*c[1]), y, 1e-6)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	net := halfSumNet()
	a, err := net.Evaluate([]float64{0.3, -0.7})
	require.NoError(t, err)
	b, err := net.Evaluate([]float64{0.3, -0.7})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluateNormalization(t *testing.T) {
	net := &Network{
		InputBands:    []string{"B03"},
		InputMin:      []float64{0},
		InputMax:      []float64{10},
		HiddenWeights: [][]float64{{1}},
		HiddenBias:    []float64{0},
		OutputWeights: []float64{1},
		OutputBias:    0,
		OutputMin:     0,
		OutputMax:     10,
	}
	require.NoError(t, net.Validate())

	// Mid-domain input normalizes to zero, so tanh(0) denormalizes back
	// to the output midpoint.
	y, err := net.Evaluate([]float64{5})
	require.NoError(t, err)
	assert.InDelta(t, 5, y, 1e-9)
}

func TestEvaluateDoesNotClamp(t *testing.T) {
	net := &Network{
		InputBands:    []string{"B03"},
		InputMin:      []float64{0},
		InputMax:      []float64{10},
		HiddenWeights: [][]float64{{1}},
		HiddenBias:    []float64{0},
		OutputWeights: []float64{2},
		OutputBias:    0,
		OutputMin:     0,
		OutputMax:     10,
	}
	require.NoError(t, net.Validate())

	// Out-of-domain inputs extrapolate past the output bounds
	y, err := net.Evaluate([]float64{20})
	require.NoError(t, err)
	assert.Greater(t, y, net.OutputMax)
}

func TestEvaluateInputSizeMismatch(t *testing.T) {
	net := halfSumNet()
	_, err := net.Evaluate([]float64{1})
	assert.Error(t, err)
}

func TestValidateRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Network)
	}{
		{"no input bands", func(n *Network) { n.InputBands = nil }},
		{"bounds size mismatch", func(n *Network) { n.InputMin = []float64{-1} }},
		{"degenerate input bounds", func(n *Network) { n.InputMax[0] = n.InputMin[0] }},
		{"no hidden layer", func(n *Network) { n.HiddenWeights = nil }},
		{"ragged hidden row", func(n *Network) { n.HiddenWeights = [][]float64{{0.5}} }},
		{"bias size mismatch", func(n *Network) { n.HiddenBias = []float64{0, 0} }},
		{"output weights mismatch", func(n *Network) { n.OutputWeights = []float64{1, 1} }},
		{"degenerate output bounds", func(n *Network) { n.OutputMax = n.OutputMin }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := halfSumNet()
			tt.mutate(net)
			assert.Error(t, net.Validate())
		})
	}
}
