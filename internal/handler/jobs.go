package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/dto"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
	"github.com/canopylabs/canopy/internal/pkg/pagination"
)

// JobService defines the job operations the HTTP layer needs
type JobService interface {
	SubmitSampling(ctx context.Context, sensor string, variable domain.Variable, params domain.JobParams) (*domain.Job, error)
	SubmitMapping(ctx context.Context, sensor string, variable domain.Variable, params domain.JobParams) (*domain.Job, error)
	GetWithShards(ctx context.Context, id uuid.UUID) (*domain.Job, []domain.Shard, error)
	List(ctx context.Context, filter *domain.JobFilter, limit, offset int) ([]domain.Job, int64, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// JobsHandler handles job submission and tracking endpoints
type JobsHandler struct {
	service JobService
	logger  *zap.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(service JobService, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{
		service: service,
		logger:  logger,
	}
}

// JobDetail is the full job view served by GET /api/v1/jobs/:id
type JobDetail struct {
	domain.Job
	Progress float64        `json:"progress"`
	Shards   []domain.Shard `json:"shards"`
}

// SubmitSampling handles POST /api/v1/jobs/sampling
func (h *JobsHandler) SubmitSampling(c *fiber.Ctx) error {
	return h.submit(c, h.service.SubmitSampling)
}

// SubmitMapping handles POST /api/v1/jobs/mapping
func (h *JobsHandler) SubmitMapping(c *fiber.Ctx) error {
	return h.submit(c, h.service.SubmitMapping)
}

func (h *JobsHandler) submit(c *fiber.Ctx, submit func(context.Context, string, domain.Variable, domain.JobParams) (*domain.Job, error)) error {
	var req dto.SubmitJobRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return invalidRequest(c, err)
	}

	job, err := submit(c.Context(), req.Sensor, req.Variable, req.Params)
	if err != nil {
		if apperrors.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Bad Request",
				"message": err.Error(),
			})
		}
		h.logger.Error("failed to submit job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to submit job",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

// ListJobs handles GET /api/v1/jobs
func (h *JobsHandler) ListJobs(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	}

	filter, err := h.parseJobFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	}

	offset := pageOffset(page)
	jobs, total, err := h.service.List(c.Context(), filter, page.Limit, offset)
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to list jobs",
		})
	}

	return c.JSON(pagination.NewPage(jobs, nextCursor(offset, len(jobs), total)))
}

// parseJobFilter reads the optional list filters off the query string
func (h *JobsHandler) parseJobFilter(c *fiber.Ctx) (*domain.JobFilter, error) {
	filter := &domain.JobFilter{Sensor: c.Query("sensor")}
	if kind := c.Query("kind"); kind != "" {
		k := domain.JobKind(kind)
		if !k.IsValid() {
			return nil, fmt.Errorf("unknown job kind %q", kind)
		}
		filter.Kind = k
	}
	if status := c.Query("status"); status != "" {
		s := domain.JobStatus(status)
		if !s.IsValid() {
			return nil, fmt.Errorf("unknown job status %q", status)
		}
		filter.Status = s
	}
	return filter, nil
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobsHandler) GetJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid job ID",
		})
	}

	job, shards, err := h.service.GetWithShards(c.Context(), id)
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

	return c.JSON(JobDetail{
		Job:      *job,
		Progress: job.Progress(),
		Shards:   shards,
	})
}

// CancelJob handles DELETE /api/v1/jobs/:id. Running shards finish
// their current attempt; queued shards see the cancelled status and
// skip.
func (h *JobsHandler) CancelJob(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid job ID",
		})
	}

	if err := h.service.Cancel(c.Context(), id); err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Not Found",
				"message": "Job not found",
			})
		}
		if apperrors.IsConflict(err) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "Conflict",
				"message": err.Error(),
			})
		}
		h.logger.Error("failed to cancel job", zap.String("job_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to cancel job",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers job routes on the API group
func (h *JobsHandler) RegisterRoutes(api fiber.Router) {
	api.Post("/jobs/sampling", h.SubmitSampling)
	api.Post("/jobs/mapping", h.SubmitMapping)
	api.Get("/jobs", h.ListJobs)
	api.Get("/jobs/:id", h.GetJob)
	api.Delete("/jobs/:id", h.CancelJob)
}
