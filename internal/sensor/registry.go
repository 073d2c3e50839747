package sensor

import (
	"fmt"
	"sort"
	"sync"
)

// Config describes one supported sensor family: its archive collection,
// network input band order, reflectance scaling and clear-sky test.
// Input bands start with the three cosine geometry bands; the fourth
// band is the grid reference the working projection resolves from.
type Config struct {
	Name         string `json:"name"`
	CollectionID string `json:"collectionId"`

	// InputBands in network input order: cosVZA, cosSZA, cosRAA, then
	// the spectral bands.
	InputBands []string `json:"inputBands"`

	// Scale and Offset map raw stored reflectance into network input
	// units: scaled = raw*scale + offset.
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`

	// CloudCoverProp is the scene metadata property the cloud cover
	// filter reads.
	CloudCoverProp string `json:"cloudCoverProp"`

	// QABand with either ClearClasses (categorical scene
	// classification) or ClearMask (bit flag) deciding clear sky.
	QABand       string `json:"qaBand"`
	ClearClasses []int  `json:"clearClasses,omitempty"`
	ClearMask    uint16 `json:"clearMask,omitempty"`

	// CloudProbCollection names the companion cloud probability
	// collection, empty for sensors without one.
	CloudProbCollection string `json:"cloudProbCollection,omitempty"`
}

// ReferenceBand returns the band defining the working grid.
func (c *Config) ReferenceBand() string {
	return c.InputBands[3]
}

// SpectralBands returns the input bands after the three geometry bands.
func (c *Config) SpectralBands() []string {
	return c.InputBands[3:]
}

// IsClear reports whether a QA band value passes the clear-sky test.
func (c *Config) IsClear(qa float64) bool {
	if len(c.ClearClasses) > 0 {
		v := int(qa)
		for _, class := range c.ClearClasses {
			if v == class {
				return true
			}
		}
		return false
	}
	return uint16(qa)&c.ClearMask != 0
}

// Validate checks the config is usable by the product builder.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("sensor config has no name")
	}
	if len(c.InputBands) < 4 {
		return fmt.Errorf("sensor %s: %d input bands, want at least 3 geometry + 1 spectral", c.Name, len(c.InputBands))
	}
	if c.Scale == 0 {
		return fmt.Errorf("sensor %s: zero reflectance scale", c.Name)
	}
	if c.CloudCoverProp == "" {
		return fmt.Errorf("sensor %s: no cloud cover property", c.Name)
	}
	if c.QABand == "" {
		return fmt.Errorf("sensor %s: no QA band", c.Name)
	}
	if len(c.ClearClasses) == 0 && c.ClearMask == 0 {
		return fmt.Errorf("sensor %s: no clear-sky test", c.Name)
	}
	return nil
}

// Registry holds the supported sensor configurations.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*Config
}

// NewRegistry creates a registry with the default sensor set.
func NewRegistry() *Registry {
	r := &Registry{configs: make(map[string]*Config)}
	r.loadDefaults()
	return r
}

// Get returns the configuration for a sensor name.
func (r *Registry) Get(name string) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("unknown sensor %q", name)
	}
	return cfg, nil
}

// Register adds or replaces a sensor configuration.
func (r *Registry) Register(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	return nil
}

// List returns the registered sensor names in ascending order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadDefaults loads the supported sensor set.
func (r *Registry) loadDefaults() {
	r.mu.Lock()
	defer r.mu.Unlock()

	defaults := []Config{
		{
			Name:         "sentinel2-sr",
			CollectionID: "COPERNICUS/S2_SR_HARMONIZED",
			InputBands: []string{
				"cosVZA", "cosSZA", "cosRAA",
				"B03", "B04", "B05", "B06", "B07", "B8A", "B11", "B12",
			},
			Scale:          0.0001,
			Offset:         0,
			CloudCoverProp: "CLOUDY_PIXEL_PERCENTAGE",
			QABand:         "SCL",
			// Scene classification: vegetation, bare, water
			ClearClasses:        []int{4, 5, 6},
			CloudProbCollection: "COPERNICUS/S2_CLOUD_PROBABILITY",
		},
		{
			Name:         "landsat8-sr",
			CollectionID: "LANDSAT/LC08/C02/T1_L2",
			InputBands: []string{
				"cosVZA", "cosSZA", "cosRAA",
				"B3", "B4", "B5", "B6", "B7",
			},
			Scale:          0.0000275,
			Offset:         -0.2,
			CloudCoverProp: "CLOUD_COVER_LAND",
			QABand:         "QA_PIXEL",
			ClearMask:      1 << 6,
		},
		{
			Name:         "landsat9-sr",
			CollectionID: "LANDSAT/LC09/C02/T1_L2",
			InputBands: []string{
				"cosVZA", "cosSZA", "cosRAA",
				"B3", "B4", "B5", "B6", "B7",
			},
			Scale:          0.0000275,
			Offset:         -0.2,
			CloudCoverProp: "CLOUD_COVER_LAND",
			QABand:         "QA_PIXEL",
			ClearMask:      1 << 6,
		},
		{
			Name:         "landsat7-sr",
			CollectionID: "LANDSAT/LE07/C02/T1_L2",
			InputBands: []string{
				"cosVZA", "cosSZA", "cosRAA",
				"B1", "B2", "B3", "B4", "B5", "B7",
			},
			Scale:          0.0000275,
			Offset:         -0.2,
			CloudCoverProp: "CLOUD_COVER_LAND",
			QABand:         "QA_PIXEL",
			ClearMask:      1 << 6,
		},
	}

	for i := range defaults {
		r.configs[defaults[i].Name] = &defaults[i]
	}
}
