package nnet

import (
	"fmt"
	"math"
)

// Network holds the coefficients of one retrieval network: an affine
// input normalization, a tanh hidden layer, a linear output neuron and
// an affine output denormalization. Coefficients are scoped to exactly
// one (sensor, variable, kind, partition class) tuple.
type Network struct {
	InputBands []string  `json:"inputBands"`
	InputMin   []float64 `json:"inputMin"`
	InputMax   []float64 `json:"inputMax"`

	HiddenWeights [][]float64 `json:"hiddenWeights"`
	HiddenBias    []float64   `json:"hiddenBias"`
	OutputWeights []float64   `json:"outputWeights"`
	OutputBias    float64     `json:"outputBias"`

	OutputMin float64 `json:"outputMin"`
	OutputMax float64 `json:"outputMax"`
}

// Validate checks dimension consistency and rejects degenerate
// normalization bounds. Called once at load, not per evaluation.
func (n *Network) Validate() error {
	p := len(n.InputBands)
	if p == 0 {
		return fmt.Errorf("network has no input bands")
	}
	if len(n.InputMin) != p || len(n.InputMax) != p {
		return fmt.Errorf("input bounds size %d/%d does not match %d input bands",
			len(n.InputMin), len(n.InputMax), p)
	}
	for i := range n.InputMin {
		if n.InputMax[i] <= n.InputMin[i] {
			return fmt.Errorf("degenerate input bounds [%g, %g] for band %s",
				n.InputMin[i], n.InputMax[i], n.InputBands[i])
		}
	}

	h := len(n.HiddenWeights)
	if h == 0 {
		return fmt.Errorf("network has no hidden layer")
	}
	for j, row := range n.HiddenWeights {
		if len(row) != p {
			return fmt.Errorf("hidden row %d has %d weights, want %d", j, len(row), p)
		}
	}
	if len(n.HiddenBias) != h {
		return fmt.Errorf("hidden bias size %d does not match %d hidden units", len(n.HiddenBias), h)
	}
	if len(n.OutputWeights) != h {
		return fmt.Errorf("output weights size %d does not match %d hidden units", len(n.OutputWeights), h)
	}

	if n.OutputMax <= n.OutputMin {
		return fmt.Errorf("degenerate output bounds [%g, %g]", n.OutputMin, n.OutputMax)
	}
	return nil
}

// Evaluate applies the network to one input vector. Inputs outside the
// training bounds are not clamped; they extrapolate, and the caller's
// conditioning step flags them through QC instead. Pure function.
func (n *Network) Evaluate(inputs []float64) (float64, error) {
	p := len(n.InputBands)
	if len(inputs) != p {
		return 0, fmt.Errorf("got %d inputs, want %d", len(inputs), p)
	}

	norm := make([]float64, p)
	for i, x := range inputs {
		norm[i] = 2*(x-n.InputMin[i])/(n.InputMax[i]-n.InputMin[i]) - 1
	}

	out := n.OutputBias
	for j, row := range n.HiddenWeights {
		sum := n.HiddenBias[j]
		for i, w := range row {
			sum += w * norm[i]
		}
		out += n.OutputWeights[j] * math.Tanh(sum)
	}

	return (out+1)*(n.OutputMax-n.OutputMin)/2 + n.OutputMin, nil
}
