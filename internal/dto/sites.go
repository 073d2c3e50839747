package dto

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/domain"
)

// CreateSiteRequest represents the request to register a site. Callers
// supply either a polygon or a point with a buffer radius.
type CreateSiteRequest struct {
	Name         string      `json:"name" validate:"required"`
	Description  string      `json:"description,omitempty"`
	Geometry     orb.Polygon `json:"geometry,omitempty"`
	Point        *orb.Point  `json:"point,omitempty"`
	BufferMeters float64     `json:"bufferMeters,omitempty" validate:"gte=0"`
	TimeStart    time.Time   `json:"timeStart"`
	TimeEnd      time.Time   `json:"timeEnd"`
}

// Input converts the request into the domain site input
func (r *CreateSiteRequest) Input() *domain.SiteInput {
	return &domain.SiteInput{
		Name:        r.Name,
		Description: r.Description,
		Geometry:    r.Geometry,
		Point:       r.Point,
		BufferM:     r.BufferMeters,
		TimeStart:   r.TimeStart,
		TimeEnd:     r.TimeEnd,
	}
}

// UpdateSiteRequest represents a partial site update. Zero-valued
// fields leave the stored value untouched.
type UpdateSiteRequest struct {
	Name         string      `json:"name,omitempty"`
	Description  string      `json:"description,omitempty"`
	Geometry     orb.Polygon `json:"geometry,omitempty"`
	Point        *orb.Point  `json:"point,omitempty"`
	BufferMeters float64     `json:"bufferMeters,omitempty" validate:"gte=0"`
	TimeStart    time.Time   `json:"timeStart,omitempty"`
	TimeEnd      time.Time   `json:"timeEnd,omitempty"`
}

// Input converts the request into the domain site input
func (r *UpdateSiteRequest) Input() *domain.SiteInput {
	return &domain.SiteInput{
		Name:        r.Name,
		Description: r.Description,
		Geometry:    r.Geometry,
		Point:       r.Point,
		BufferM:     r.BufferMeters,
		TimeStart:   r.TimeStart,
		TimeEnd:     r.TimeEnd,
	}
}
