package service

import (
	"time"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// productTimeZone fixes the day boundaries date windows are cut on.
// Upstream surface reflectance products stamp their dates in UTC-6, so
// windows aligned there cover whole product days at any site longitude.
var productTimeZone = time.FixedZone("Etc/GMT+6", -6*60*60)

// DateWindow resolves the half-open sampling window for one site.
// Explicit request dates override the site observation window and
// ignore the buffer; otherwise the site window is widened by the
// buffer on both ends. A site with only a start observation gets a
// symmetric window around it. The end lands one day past the last
// sampled day.
func DateWindow(site *domain.Site, params domain.JobParams) (domain.DateRange, error) {
	if params.StartDate != nil && params.EndDate != nil {
		return explicitWindow(*params.StartDate, *params.EndDate)
	}

	if site.TimeStart.IsZero() {
		return domain.DateRange{}, apperrors.Validation("site has no observation window and no explicit dates were given")
	}

	start := dayStart(site.TimeStart).AddDate(0, 0, -params.BufferDays)

	endBase := site.TimeEnd
	if endBase.IsZero() {
		endBase = site.TimeStart
	}
	end := dayStart(endBase).AddDate(0, 0, params.BufferDays+1)
	if !end.After(start) {
		return domain.DateRange{}, apperrors.Validation("site observation window is inverted")
	}
	return domain.DateRange{Start: start, End: end}, nil
}

// explicitWindow resolves a start and end date pair into a half-open
// window covering both product days.
func explicitWindow(startDate, endDate time.Time) (domain.DateRange, error) {
	start := dayStart(startDate)
	end := dayStart(endDate).AddDate(0, 0, 1)
	if !end.After(start) {
		return domain.DateRange{}, apperrors.Validation("end date precedes start date")
	}
	return domain.DateRange{Start: start, End: end}, nil
}

// dayStart truncates an instant to its product-day boundary.
func dayStart(t time.Time) time.Time {
	y, m, d := t.In(productTimeZone).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, productTimeZone)
}

// SplitDates cuts a window into consecutive shard ranges on year or
// month boundaries. The first range starts at start, the last ends at
// end, and a trailing partial period is kept rather than dropped.
func SplitDates(start, end time.Time, unit domain.SplitUnit) []domain.DateRange {
	if !end.After(start) {
		return nil
	}

	var ranges []domain.DateRange
	cursor := start
	for cursor.Before(end) {
		next := nextBoundary(cursor, unit)
		if next.After(end) {
			next = end
		}
		ranges = append(ranges, domain.DateRange{Start: cursor, End: next})
		cursor = next
	}
	return ranges
}

// nextBoundary returns the first period boundary strictly after t.
func nextBoundary(t time.Time, unit domain.SplitUnit) time.Time {
	y, m, _ := t.In(productTimeZone).Date()
	switch unit {
	case domain.SplitUnitMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, productTimeZone).AddDate(0, 1, 0)
	default:
		return time.Date(y, 1, 1, 0, 0, 0, 0, productTimeZone).AddDate(1, 0, 0)
	}
}
