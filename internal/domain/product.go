package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Default knobs applied when a product request leaves them unset.
const (
	DefaultMaxCloudCover = 100.0
	DefaultInputScale    = 30.0
	DefaultOutputScale   = 30.0
	// MaxScenesPerWindow caps how many catalog scenes one request may load.
	MaxScenesPerWindow = 5000
)

// ProductRequest describes one product window over one geometry
type ProductRequest struct {
	Sensor        string      `json:"sensor"`
	Variable      Variable    `json:"variable"`
	Geometry      orb.Polygon `json:"geometry"`
	StartDate     time.Time   `json:"startDate"`
	EndDate       time.Time   `json:"endDate"`
	MaxCloudCover float64     `json:"maxCloudCover"`
	InputScale    float64     `json:"inputScale"`
	OutputScale   float64     `json:"outputScale"`
	StartMonth    int         `json:"startMonth"`
	EndMonth      int         `json:"endMonth"`
}

// Normalize fills unset knobs with their defaults
func (r *ProductRequest) Normalize() {
	if r.Variable == "" {
		r.Variable = VariableSurfaceReflectance
	}
	if r.MaxCloudCover <= 0 {
		r.MaxCloudCover = DefaultMaxCloudCover
	}
	if r.InputScale <= 0 {
		r.InputScale = DefaultInputScale
	}
	if r.OutputScale <= 0 {
		r.OutputScale = DefaultOutputScale
	}
	if r.StartMonth == 0 && r.EndMonth == 0 {
		r.StartMonth, r.EndMonth = 1, 12
	}
}

// Filter converts the request into a catalog scene filter
func (r *ProductRequest) Filter() SceneFilter {
	return SceneFilter{
		Sensor:        r.Sensor,
		Bounds:        r.Geometry.Bound(),
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		MaxCloudCover: r.MaxCloudCover,
		StartMonth:    r.StartMonth,
		EndMonth:      r.EndMonth,
		Limit:         MaxScenesPerWindow,
	}
}

// ProductSummary reports what a product request would load
type ProductSummary struct {
	SceneCount int        `json:"sceneCount"`
	Capped     bool       `json:"capped"`
	Scenes     []SceneRef `json:"scenes"`
}
