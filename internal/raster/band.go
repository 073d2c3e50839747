package raster

// Band holds one raster plane and its validity mask. Fields are exported
// so band payloads can be gob-encoded for the tile store.
type Band struct {
	Name string
	Data []float64
	Mask []bool // true marks a valid cell
}

// NewBand allocates a band of the given size with every cell valid.
func NewBand(name string, size int) *Band {
	b := &Band{
		Name: name,
		Data: make([]float64, size),
		Mask: make([]bool, size),
	}
	for i := range b.Mask {
		b.Mask[i] = true
	}
	return b
}

// NewMaskedBand allocates a band of the given size with every cell invalid.
func NewMaskedBand(name string, size int) *Band {
	return &Band{
		Name: name,
		Data: make([]float64, size),
		Mask: make([]bool, size),
	}
}

// ConstantBand allocates a band filled with a single valid value.
func ConstantBand(name string, size int, value float64) *Band {
	b := NewBand(name, size)
	for i := range b.Data {
		b.Data[i] = value
	}
	return b
}

// Clone returns a deep copy of the band.
func (b *Band) Clone() *Band {
	c := &Band{
		Name: b.Name,
		Data: make([]float64, len(b.Data)),
		Mask: make([]bool, len(b.Mask)),
	}
	copy(c.Data, b.Data)
	copy(c.Mask, b.Mask)
	return c
}

// ValidCount returns the number of valid cells.
func (b *Band) ValidCount() int {
	n := 0
	for _, ok := range b.Mask {
		if ok {
			n++
		}
	}
	return n
}

// Apply rewrites each valid cell through fn.
func (b *Band) Apply(fn func(float64) float64) {
	for i, ok := range b.Mask {
		if ok {
			b.Data[i] = fn(b.Data[i])
		}
	}
}
