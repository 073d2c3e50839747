package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Scene represents one catalog granule of sensor imagery
type Scene struct {
	ID         string      `json:"id"`
	Sensor     string      `json:"sensor"`
	AcquiredAt time.Time   `json:"acquiredAt"`
	CloudCover float64     `json:"cloudCover"`
	Footprint  orb.Polygon `json:"footprint"`

	// Mean observation geometry from the scene metadata, in degrees.
	ViewZenith  float64 `json:"viewZenith"`
	SunZenith   float64 `json:"sunZenith"`
	ViewAzimuth float64 `json:"viewAzimuth"`
	SunAzimuth  float64 `json:"sunAzimuth"`

	// TileKey locates the band payload in the object store.
	TileKey string `json:"tileKey"`
	// CloudProbKey locates the companion cloud probability payload, when
	// the sensor publishes one.
	CloudProbKey string `json:"cloudProbKey,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// SceneFilter narrows a catalog search
type SceneFilter struct {
	Sensor        string
	Bounds        orb.Bound
	StartDate     time.Time
	EndDate       time.Time
	MaxCloudCover float64
	StartMonth    int
	EndMonth      int
	Limit         int
}

// SceneRef is a light reference to a matched scene
type SceneRef struct {
	ID         string    `json:"id"`
	AcquiredAt time.Time `json:"acquiredAt"`
	CloudCover float64   `json:"cloudCover"`
}
