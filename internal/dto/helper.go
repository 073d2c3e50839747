package dto

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/canopylabs/canopy/internal/validator"
)

// ParseAndValidate parses the request body into the given struct and
// validates it. The caller maps the returned error onto a response;
// validation failures carry per-field details.
func ParseAndValidate(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return validator.Validate(v)
}
