package nnet

import (
	"context"
	"fmt"
	"sort"

	"github.com/canopylabs/canopy/internal/domain"
)

// Bank is the per-partition-class network set for one (sensor,
// variable, kind) triple. Banks are built once at load time and never
// mutated afterwards.
type Bank struct {
	Sensor   string
	Variable domain.Variable
	Kind     domain.NetworkKind

	networks map[int]*Network
}

// NewBank validates every network and indexes it by partition class.
func NewBank(sensor string, variable domain.Variable, kind domain.NetworkKind, byClass map[int]*Network) (*Bank, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid network kind %q", kind)
	}
	if len(byClass) == 0 {
		return nil, fmt.Errorf("empty %s bank for %s/%s", kind, sensor, variable)
	}

	networks := make(map[int]*Network, len(byClass))
	for class, n := range byClass {
		if err := n.Validate(); err != nil {
			return nil, fmt.Errorf("%s/%s/%s class %d: %w", sensor, variable, kind, class, err)
		}
		networks[class] = n
	}

	return &Bank{
		Sensor:   sensor,
		Variable: variable,
		Kind:     kind,
		networks: networks,
	}, nil
}

// Network returns the network configured for a partition class.
func (b *Bank) Network(class int) (*Network, bool) {
	n, ok := b.networks[class]
	return n, ok
}

// Classes returns the configured partition classes in ascending order.
func (b *Bank) Classes() []int {
	out := make([]int, 0, len(b.networks))
	for class := range b.networks {
		out = append(out, class)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of configured classes.
func (b *Bank) Len() int {
	return len(b.networks)
}

// BankSet pairs the estimate and uncertainty banks of one variable.
// Both banks must cover identical class sets so that a pixel's estimate
// and uncertainty always come from the same partition class.
type BankSet struct {
	Estimate    *Bank
	Uncertainty *Bank
}

// NewBankSet validates class-set symmetry between the two banks.
func NewBankSet(estimate, uncertainty *Bank) (*BankSet, error) {
	if estimate == nil || uncertainty == nil {
		return nil, fmt.Errorf("bank set requires both estimate and uncertainty banks")
	}
	if estimate.Kind != domain.NetworkKindEstimate {
		return nil, fmt.Errorf("estimate bank has kind %q", estimate.Kind)
	}
	if uncertainty.Kind != domain.NetworkKindUncertainty {
		return nil, fmt.Errorf("uncertainty bank has kind %q", uncertainty.Kind)
	}
	if estimate.Sensor != uncertainty.Sensor || estimate.Variable != uncertainty.Variable {
		return nil, fmt.Errorf("bank pair mismatch: %s/%s vs %s/%s",
			estimate.Sensor, estimate.Variable, uncertainty.Sensor, uncertainty.Variable)
	}

	ec, uc := estimate.Classes(), uncertainty.Classes()
	if len(ec) != len(uc) {
		return nil, fmt.Errorf("%s/%s banks cover %d vs %d classes",
			estimate.Sensor, estimate.Variable, len(ec), len(uc))
	}
	for i := range ec {
		if ec[i] != uc[i] {
			return nil, fmt.Errorf("%s/%s banks diverge at class %d vs %d",
				estimate.Sensor, estimate.Variable, ec[i], uc[i])
		}
	}

	return &BankSet{Estimate: estimate, Uncertainty: uncertainty}, nil
}

// Source resolves the bank pair for a sensor and variable.
type Source interface {
	BankSet(ctx context.Context, sensor string, variable domain.Variable) (*BankSet, error)
}

// FromAssets builds one bank from stored coefficient rows. All rows
// must belong to the same (sensor, variable, kind) triple.
func FromAssets(assets []domain.NetworkAsset) (*Bank, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("no network assets")
	}

	first := assets[0]
	byClass := make(map[int]*Network, len(assets))
	for _, a := range assets {
		if a.Sensor != first.Sensor || a.Variable != first.Variable || a.Kind != first.Kind {
			return nil, fmt.Errorf("mixed assets in bank: %s/%s/%s and %s/%s/%s",
				first.Sensor, first.Variable, first.Kind, a.Sensor, a.Variable, a.Kind)
		}
		if _, dup := byClass[a.ClassID]; dup {
			return nil, fmt.Errorf("%s/%s/%s has duplicate class %d", a.Sensor, a.Variable, a.Kind, a.ClassID)
		}
		n, err := fromAsset(a)
		if err != nil {
			return nil, err
		}
		byClass[a.ClassID] = n
	}

	return NewBank(first.Sensor, first.Variable, first.Kind, byClass)
}

func fromAsset(a domain.NetworkAsset) (*Network, error) {
	p := len(a.InputBands)
	if a.HiddenSize <= 0 {
		return nil, fmt.Errorf("%s/%s/%s class %d: hidden size %d", a.Sensor, a.Variable, a.Kind, a.ClassID, a.HiddenSize)
	}
	if len(a.HiddenWeights) != a.HiddenSize*p {
		return nil, fmt.Errorf("%s/%s/%s class %d: %d hidden weights, want %d",
			a.Sensor, a.Variable, a.Kind, a.ClassID, len(a.HiddenWeights), a.HiddenSize*p)
	}

	// Unflatten the row-major weight matrix.
	rows := make([][]float64, a.HiddenSize)
	for j := 0; j < a.HiddenSize; j++ {
		rows[j] = append([]float64(nil), a.HiddenWeights[j*p:(j+1)*p]...)
	}

	return &Network{
		InputBands:    append([]string(nil), a.InputBands...),
		InputMin:      append([]float64(nil), a.InputMin...),
		InputMax:      append([]float64(nil), a.InputMax...),
		HiddenWeights: rows,
		HiddenBias:    append([]float64(nil), a.HiddenBias...),
		OutputWeights: append([]float64(nil), a.OutputWeights...),
		OutputBias:    a.OutputBias,
		OutputMin:     a.OutputMin,
		OutputMax:     a.OutputMax,
	}, nil
}
