package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/domain"
)

// ProductQueryRequest represents a synchronous dry-run product query,
// over either a registered site or an explicit geometry.
type ProductQueryRequest struct {
	Sensor   string          `json:"sensor" validate:"required"`
	Variable domain.Variable `json:"variable,omitempty" validate:"omitempty,variable"`

	SiteID   *uuid.UUID  `json:"siteId,omitempty"`
	Geometry orb.Polygon `json:"geometry,omitempty"`

	// StartDate and EndDate are required with an explicit geometry and
	// override the site observation window otherwise.
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	BufferDays int        `json:"bufferDays,omitempty" validate:"gte=0"`

	MaxCloudCover float64 `json:"maxCloudCover,omitempty" validate:"gte=0,lte=100"`
	StartMonth    int     `json:"startMonth,omitempty" validate:"gte=0,lte=12"`
	EndMonth      int     `json:"endMonth,omitempty" validate:"gte=0,lte=12"`
}
