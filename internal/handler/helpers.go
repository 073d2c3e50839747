package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/canopylabs/canopy/internal/pkg/pagination"
	"github.com/canopylabs/canopy/internal/validator"
)

// parsePage reads the limit and cursor pagination inputs off the query
// string.
func parsePage(c *fiber.Ctx) (pagination.Params, error) {
	return pagination.ParseParams(c.QueryInt("limit"), c.Query("cursor"))
}

// pageOffset returns the list offset a cursor resumes from
func pageOffset(p pagination.Params) int {
	if p.After == nil {
		return 0
	}
	return p.After.Offset
}

// nextCursor returns the cursor for the page after this one, or nil
// when the listing is exhausted.
func nextCursor(offset, served int, total int64) *pagination.Cursor {
	if int64(offset+served) >= total {
		return nil
	}
	return pagination.NewOffsetCursor(offset + served)
}

// invalidRequest writes the 400 response for a rejected request body.
// Validation failures carry their per-field details.
func invalidRequest(c *fiber.Ctx, err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation Error",
			"message": "Request validation failed",
			"errors":  validationErrors,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "Bad Request",
		"message": err.Error(),
	})
}
