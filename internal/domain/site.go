package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Site represents a monitored area of interest
type Site struct {
	ID          uuid.UUID   `json:"id"`
	Ordinal     int         `json:"ordinal"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Geometry    orb.Polygon `json:"geometry"`
	TimeStart   time.Time   `json:"timeStart"`
	TimeEnd     time.Time   `json:"timeEnd"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Bound returns the bounding box of the site geometry
func (s *Site) Bound() orb.Bound {
	return s.Geometry.Bound()
}

// SiteInput represents input for creating or updating a site.
// Callers supply either a polygon or a point with a buffer radius;
// points are expanded to polygons before the site is stored.
type SiteInput struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Geometry    orb.Polygon `json:"geometry,omitempty"`
	Point       *orb.Point  `json:"point,omitempty"`
	BufferM     float64     `json:"bufferMeters,omitempty"`
	TimeStart   time.Time   `json:"timeStart"`
	TimeEnd     time.Time   `json:"timeEnd"`
}
