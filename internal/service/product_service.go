package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// ProductSummarizer runs the catalog filter path of the product builder.
type ProductSummarizer interface {
	Summarize(ctx context.Context, req domain.ProductRequest) (*domain.ProductSummary, error)
}

// ProductQuery describes one synchronous dry-run request, over either a
// registered site or an explicit geometry.
type ProductQuery struct {
	Sensor   string          `json:"sensor"`
	Variable domain.Variable `json:"variable,omitempty"`

	SiteID   *uuid.UUID  `json:"siteId,omitempty"`
	Geometry orb.Polygon `json:"geometry,omitempty"`

	// StartDate and EndDate are required with an explicit geometry and
	// override the site observation window otherwise.
	StartDate  *time.Time `json:"startDate,omitempty"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	BufferDays int        `json:"bufferDays,omitempty"`

	MaxCloudCover float64 `json:"maxCloudCover,omitempty"`
	StartMonth    int     `json:"startMonth,omitempty"`
	EndMonth      int     `json:"endMonth,omitempty"`
}

// ProductQueryService answers dry-run product queries: which scenes a
// request would load, before anyone pays for pixel work.
type ProductQueryService struct {
	summarizer ProductSummarizer
	sites      SiteRepository
}

// NewProductQueryService creates a new product query service
func NewProductQueryService(summarizer ProductSummarizer, sites SiteRepository) *ProductQueryService {
	return &ProductQueryService{summarizer: summarizer, sites: sites}
}

// Query resolves the request geometry and window and reports the scenes
// the catalog would serve. No pixel payload loads.
func (s *ProductQueryService) Query(ctx context.Context, q ProductQuery) (*domain.ProductSummary, error) {
	if q.Variable != "" && !q.Variable.IsValid() {
		return nil, apperrors.Validation("unknown variable " + string(q.Variable))
	}
	if (q.StartMonth == 0) != (q.EndMonth == 0) {
		return nil, apperrors.Validation("start and end month must be set together")
	}

	geometry := q.Geometry
	var window domain.DateRange

	switch {
	case q.SiteID != nil:
		if len(q.Geometry) > 0 {
			return nil, apperrors.Validation("supply either a site or a geometry, not both")
		}
		site, err := s.sites.GetByID(ctx, *q.SiteID)
		if err != nil {
			return nil, err
		}
		geometry = site.Geometry
		window, err = DateWindow(site, domain.JobParams{
			StartDate:  q.StartDate,
			EndDate:    q.EndDate,
			BufferDays: q.BufferDays,
		})
		if err != nil {
			return nil, err
		}
	case len(geometry) > 0:
		if q.StartDate == nil || q.EndDate == nil {
			return nil, apperrors.Validation("queries over a raw geometry need explicit start and end dates")
		}
		var err error
		window, err = explicitWindow(*q.StartDate, *q.EndDate)
		if err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.Validation("product query needs a site or a geometry")
	}

	return s.summarizer.Summarize(ctx, domain.ProductRequest{
		Sensor:        q.Sensor,
		Variable:      q.Variable,
		Geometry:      geometry,
		StartDate:     window.Start,
		EndDate:       window.End,
		MaxCloudCover: q.MaxCloudCover,
		StartMonth:    q.StartMonth,
		EndMonth:      q.EndMonth,
	})
}
