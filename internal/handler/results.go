package handler

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
)

// resultPageSize bounds one warehouse read while streaming a CSV download.
const resultPageSize = 10000

// downloadURLTTL is how long a presigned export link stays valid.
const downloadURLTTL = 15 * time.Minute

// JobGetter loads one job row
type JobGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// SampleReader pages stored samples out of the warehouse
type SampleReader interface {
	List(ctx context.Context, filter domain.SampleFilter) ([]domain.Sample, int64, error)
}

// ExportLister serves stored export objects
type ExportLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// ResultsHandler serves finished job output back out: warehouse samples
// as a streamed CSV and export objects as presigned links.
type ResultsHandler struct {
	jobs     JobGetter
	samples  SampleReader
	exports  ExportLister
	logger   *zap.Logger
	pageSize int
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(jobs JobGetter, samples SampleReader, exports ExportLister, logger *zap.Logger) *ResultsHandler {
	return &ResultsHandler{
		jobs:     jobs,
		samples:  samples,
		exports:  exports,
		logger:   logger,
		pageSize: resultPageSize,
	}
}

// sampleCSVHeader names the download columns. Unlike per-site export
// objects, a whole-job download spans sites, so the site column rides
// along.
var sampleCSVHeader = []string{"site_id", "scene_id", "acquired_at", "longitude", "latitude", "band", "value", "qc", "partition"}

// DownloadSamples handles GET /api/v1/jobs/:id/samples.csv. Rows
// stream straight from the warehouse into the response, so downloads
// of any size hold one page in memory.
func (h *ResultsHandler) DownloadSamples(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid job ID",
		})
	}

	job, err := h.jobs.GetByID(c.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Not Found",
				"message": "Job not found",
			})
		}
		h.logger.Error("failed to get job", zap.String("job_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to get job",
		})
	}

	filter := domain.SampleFilter{
		JobID: job.ID.String(),
		Band:  c.Query("band"),
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", job.ID.String()+"_samples.csv"))

	// The stream writer runs after this handler returns; only the
	// request context survives that long, never the fiber ctx.
	reqCtx := c.Context()
	logger := h.logger
	pageSize := h.pageSize

	reqCtx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		cw := csv.NewWriter(w)
		if err := cw.Write(sampleCSVHeader); err != nil {
			return
		}

		for offset := 0; ; offset += pageSize {
			f := filter
			f.Limit = pageSize
			f.Offset = offset

			page, _, err := h.samples.List(reqCtx, f)
			if err != nil {
				// Headers are gone; all we can do is log and cut the stream.
				logger.Error("sample download aborted",
					zap.String("job_id", filter.JobID),
					zap.Int("offset", offset),
					zap.Error(err),
				)
				return
			}
			for i := range page {
				if err := cw.Write(downloadRecord(&page[i])); err != nil {
					return
				}
			}
			if len(page) < pageSize {
				break
			}
			cw.Flush()
			if err := w.Flush(); err != nil {
				return
			}
		}
		cw.Flush()
	}))
	return nil
}

// downloadRecord flattens one sample into its CSV columns
func downloadRecord(s *domain.Sample) []string {
	return []string{
		s.SiteID,
		s.SceneID,
		s.AcquiredAt.UTC().Format(time.RFC3339),
		strconv.FormatFloat(s.Longitude, 'f', -1, 64),
		strconv.FormatFloat(s.Latitude, 'f', -1, 64),
		s.Band,
		strconv.FormatFloat(s.Value, 'f', -1, 64),
		strconv.Itoa(int(s.QC)),
		strconv.Itoa(int(s.Partition)),
	}
}

// ExportObject is one stored result object with a temporary download link
type ExportObject struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ListExports handles GET /api/v1/jobs/:id/exports
func (h *ResultsHandler) ListExports(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid job ID",
		})
	}

	if _, err := h.jobs.GetByID(c.Context(), id); err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Not Found",
				"message": "Job not found",
			})
		}
		h.logger.Error("failed to get job", zap.String("job_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to get job",
		})
	}

	keys, err := h.exports.ListKeys(c.Context(), "jobs/"+id.String()+"/")
	if err != nil {
		h.logger.Error("failed to list exports", zap.String("job_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to list exports",
		})
	}

	items := make([]ExportObject, 0, len(keys))
	for _, key := range keys {
		url, err := h.exports.PresignedURL(c.Context(), key, downloadURLTTL)
		if err != nil {
			h.logger.Error("failed to presign export", zap.String("key", key), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Internal Server Error",
				"message": "Failed to presign export",
			})
		}
		items = append(items, ExportObject{Key: key, URL: url})
	}

	return c.JSON(fiber.Map{"items": items})
}

// RegisterRoutes registers result retrieval routes on the API group
func (h *ResultsHandler) RegisterRoutes(api fiber.Router) {
	api.Get("/jobs/:id/samples.csv", h.DownloadSamples)
	api.Get("/jobs/:id/exports", h.ListExports)
}
