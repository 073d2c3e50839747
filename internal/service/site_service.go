package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
	"github.com/canopylabs/canopy/internal/raster"
)

// bufferVertices is how many vertices approximate a buffered point.
const bufferVertices = 32

// SiteRepository defines site repository operations
type SiteRepository interface {
	Create(ctx context.Context, site *domain.Site) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error)
	GetByOrdinal(ctx context.Context, ordinal int) (*domain.Site, error)
	ListRange(ctx context.Context, from, to int) ([]domain.Site, error)
	List(ctx context.Context, limit, offset int) ([]domain.Site, int64, error)
	MaxOrdinal(ctx context.Context) (int, error)
	Update(ctx context.Context, site *domain.Site) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// SiteService handles site registry operations
type SiteService struct {
	repo SiteRepository
}

// NewSiteService creates a new site service
func NewSiteService(repo SiteRepository) *SiteService {
	return &SiteService{repo: repo}
}

// Create registers a new site
func (s *SiteService) Create(ctx context.Context, input *domain.SiteInput) (*domain.Site, error) {
	geometry, err := resolveGeometry(input)
	if err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, apperrors.Validation("site name is required")
	}
	if !input.TimeStart.IsZero() && !input.TimeEnd.IsZero() && input.TimeEnd.Before(input.TimeStart) {
		return nil, apperrors.Validation("site time window is inverted")
	}

	now := time.Now().UTC()
	site := &domain.Site{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Geometry:    geometry,
		TimeStart:   input.TimeStart,
		TimeEnd:     input.TimeEnd,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, site); err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}
	return site, nil
}

// GetByID retrieves a site by ID
func (s *SiteService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves sites with pagination
func (s *SiteService) List(ctx context.Context, limit, offset int) ([]domain.Site, int64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.repo.List(ctx, limit, offset)
}

// Update modifies a registered site
func (s *SiteService) Update(ctx context.Context, id uuid.UUID, input *domain.SiteInput) (*domain.Site, error) {
	site, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		site.Name = input.Name
	}
	if input.Description != "" {
		site.Description = input.Description
	}
	if len(input.Geometry) > 0 || input.Point != nil {
		geometry, err := resolveGeometry(input)
		if err != nil {
			return nil, err
		}
		site.Geometry = geometry
	}
	if !input.TimeStart.IsZero() {
		site.TimeStart = input.TimeStart
	}
	if !input.TimeEnd.IsZero() {
		site.TimeEnd = input.TimeEnd
	}
	if !site.TimeStart.IsZero() && !site.TimeEnd.IsZero() && site.TimeEnd.Before(site.TimeStart) {
		return nil, apperrors.Validation("site time window is inverted")
	}
	site.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, site); err != nil {
		return nil, err
	}
	return site, nil
}

// Delete removes a site from the registry
func (s *SiteService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// resolveGeometry returns the polygon a site input describes
func resolveGeometry(input *domain.SiteInput) (orb.Polygon, error) {
	if input.Point != nil {
		if len(input.Geometry) > 0 {
			return nil, apperrors.Validation("supply either a polygon or a point, not both")
		}
		return BufferPoint(*input.Point, input.BufferM)
	}
	if len(input.Geometry) == 0 {
		return nil, apperrors.Validation("site geometry is required")
	}

	ring := input.Geometry[0]
	if len(ring) < 3 {
		return nil, apperrors.Validation("site polygon needs at least three vertices")
	}
	// Close the outer ring if the caller left it open.
	if ring[0] != ring[len(ring)-1] {
		closed := make(orb.Ring, len(ring)+1)
		copy(closed, ring)
		closed[len(ring)] = ring[0]
		out := make(orb.Polygon, len(input.Geometry))
		copy(out, input.Geometry)
		out[0] = closed
		return out, nil
	}
	return input.Geometry, nil
}

// BufferPoint expands a point to a polygon of bufferVertices vertices
// approximating a circle of the given radius in meters.
func BufferPoint(p orb.Point, radiusMeters float64) (orb.Polygon, error) {
	if radiusMeters <= 0 {
		return nil, apperrors.Validation("point sites need a positive buffer radius")
	}
	if math.Abs(p.Lat()) > 89 {
		return nil, apperrors.Validation("point site too close to the pole")
	}

	mLat, mLon := raster.MetersPerDegree(p.Lat())
	dLat := radiusMeters / mLat
	dLon := radiusMeters / mLon

	ring := make(orb.Ring, bufferVertices+1)
	for i := 0; i < bufferVertices; i++ {
		theta := 2 * math.Pi * float64(i) / bufferVertices
		ring[i] = orb.Point{
			p.Lon() + dLon*math.Cos(theta),
			p.Lat() + dLat*math.Sin(theta),
		}
	}
	ring[bufferVertices] = ring[0]
	return orb.Polygon{ring}, nil
}
