package nnet

// Domain is the per-band valid input range the conditioning step flags
// against. Violations are soft: the QC band records them and the value
// is still computed.
type Domain struct {
	Bands []string
	Min   []float64
	Max   []float64
}

// DomainFromBank derives the domain as the envelope of the training
// bounds across every class in the bank. A value outside the envelope
// is outside the bounds of every configured network.
func DomainFromBank(b *Bank) *Domain {
	var bands []string
	mins := make(map[string]float64)
	maxs := make(map[string]float64)

	for _, class := range b.Classes() {
		n, _ := b.Network(class)
		for i, name := range n.InputBands {
			if _, seen := mins[name]; !seen {
				bands = append(bands, name)
				mins[name] = n.InputMin[i]
				maxs[name] = n.InputMax[i]
				continue
			}
			if n.InputMin[i] < mins[name] {
				mins[name] = n.InputMin[i]
			}
			if n.InputMax[i] > maxs[name] {
				maxs[name] = n.InputMax[i]
			}
		}
	}

	d := &Domain{
		Bands: bands,
		Min:   make([]float64, len(bands)),
		Max:   make([]float64, len(bands)),
	}
	for i, name := range bands {
		d.Min[i] = mins[name]
		d.Max[i] = maxs[name]
	}
	return d
}

// Contains reports whether every input lies inside its band's range.
// Inputs follow the order of Bands.
func (d *Domain) Contains(inputs []float64) bool {
	for i, v := range inputs {
		if i >= len(d.Min) {
			break
		}
		if v < d.Min[i] || v > d.Max[i] {
			return false
		}
	}
	return true
}
