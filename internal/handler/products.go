package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/canopylabs/canopy/internal/domain"
	"github.com/canopylabs/canopy/internal/dto"
	apperrors "github.com/canopylabs/canopy/internal/pkg/errors"
	"github.com/canopylabs/canopy/internal/service"
)

// ProductQuerier answers synchronous dry-run product queries
type ProductQuerier interface {
	Query(ctx context.Context, q service.ProductQuery) (*domain.ProductSummary, error)
}

// ProductsHandler handles product query endpoints
type ProductsHandler struct {
	service ProductQuerier
	logger  *zap.Logger
}

// NewProductsHandler creates a new products handler
func NewProductsHandler(service ProductQuerier, logger *zap.Logger) *ProductsHandler {
	return &ProductsHandler{
		service: service,
		logger:  logger,
	}
}

// QueryProducts handles POST /api/v1/products/query. The query is a
// dry run: it reports which scenes a request would load without paying
// for any pixel work.
func (h *ProductsHandler) QueryProducts(c *fiber.Ctx) error {
	var req dto.ProductQueryRequest
	if err := dto.ParseAndValidate(c, &req); err != nil {
		return invalidRequest(c, err)
	}

	summary, err := h.service.Query(c.Context(), service.ProductQuery{
		Sensor:        req.Sensor,
		Variable:      req.Variable,
		SiteID:        req.SiteID,
		Geometry:      req.Geometry,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		BufferDays:    req.BufferDays,
		MaxCloudCover: req.MaxCloudCover,
		StartMonth:    req.StartMonth,
		EndMonth:      req.EndMonth,
	})
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
		h.logger.Error("product query failed", zap.String("sensor", req.Sensor), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal Server Error",
			"message": "Product query failed",
		})
	}

	return c.JSON(summary)
}

// RegisterRoutes registers product routes on the API group
func (h *ProductsHandler) RegisterRoutes(api fiber.Router) {
	api.Post("/products/query", h.QueryProducts)
}
