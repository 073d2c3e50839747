package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/dto"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
	"github.com/canopylabs/canopy/internal/pkg/pagination"
)

// SiteService defines the site registry operations the HTTP layer needs
type SiteService interface {
	Create(ctx context.Context, input *domain.SiteInput) (*domain.Site, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Site, error)
	List(ctx context.Context, limit, offset int) ([]domain.Site, int64, error)
	Update(ctx context.Context, id uuid.UUID, input *domain.SiteInput) (*domain.Site, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SitesHandler handles site registry endpoints
type SitesHandler struct {
	service SiteService
	logger  *zap.Logger
}

// NewSitesHandler creates a new sites handler
func NewSitesHandler(service SiteService, logger *zap.Logger) *SitesHandler {
	return &SitesHandler{
		service: service,
		logger:  logger,
	}
}

// CreateSite handles POST /api/v1/sites
func (h *SitesHandler) CreateSite(c *fiber.Ctx) error {
	var req dto.CreateSiteRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return invalidRequest(c, err)
	}

	site, err := h.service.Create(c.Context(), req.Input())
	if err != nil {
		if apperrors.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Bad Request",
				"message": err.Error(),
			})
		}
		h.logger.Error("failed to create site", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to create site",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(site)
}

// ListSites handles GET /api/v1/sites
func (h *SitesHandler) ListSites(c *fiber.Ctx) error {
	page, err := parsePage(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": err.Error(),
		})
	}

	offset := pageOffset(page)
	sites, total, err := h.service.List(c.Context(), page.Limit, offset)
	if err != nil {
		h.logger.Error("failed to list sites", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to list sites",
		})
	}

	return c.JSON(pagination.NewPage(sites, nextCursor(offset, len(sites), total)))
}

// GetSite handles GET /api/v1/sites/:id
func (h *SitesHandler) GetSite(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid site ID",
		})
	}

	site, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Not Found",
				"message": "Site not found",
			})
		}
		h.logger.Error("failed to get site", zap.String("site_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to get site",
		})
	}

	return c.JSON(site)
}

// UpdateSite handles PATCH /api/v1/sites/:id
func (h *SitesHandler) UpdateSite(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid site ID",
		})
	}

	var req dto.UpdateSiteRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return invalidRequest(c, err)
	}

	site, err := h.service.Update(c.Context(), id, req.Input())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Not Found",
				"message": "Site not found",
			})
		}
		if apperrors.IsValidation(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Bad Request",
				"message": err.Error(),
			})
		}
		h.logger.Error("failed to update site", zap.String("site_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to update site",
		})
	}

	return c.JSON(site)
}

// DeleteSite handles DELETE /api/v1/sites/:id
func (h *SitesHandler) DeleteSite(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Bad Request",
			"message": "Invalid site ID",
		})
	}

	if err := h.service.Delete(c.Context(), id); err != nil {
		if apperrors.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "Not Found",
				"message": "Site not found",
			})
		}
		h.logger.Error("failed to delete site", zap.String("site_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Failed to delete site",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterRoutes registers site routes on the API group
func (h *SitesHandler) RegisterRoutes(api fiber.Router) {
	api.Post("/sites", h.CreateSite)
	api.Get("/sites", h.ListSites)
	api.Get("/sites/:id", h.GetSite)
	api.Patch("/sites/:id", h.UpdateSite)
	api.Delete("/sites/:id", h.DeleteSite)
}
