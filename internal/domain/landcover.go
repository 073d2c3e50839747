package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// LandCoverTile represents one land cover map tile for a given epoch
type LandCoverTile struct {
	ID        uuid.UUID       `json:"id"`
	Version   int             `json:"version"`
	Legend    LandCoverLegend `json:"legend"`
	Footprint orb.Polygon     `json:"footprint"`
	ObjectKey string          `json:"objectKey"`
	CreatedAt time.Time       `json:"createdAt"`
}
