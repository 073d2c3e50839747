// Package dto contains Data Transfer Objects for HTTP request/response handling.
//
// DTOs provide:
//   - Type-safe request parsing with struct tags
//   - Declarative validation using go-playground/validator
//   - Separation between API contracts and domain types
//
// # Usage
//
// Use dto.ParseAndValidate() in handlers to parse and validate requests:
//
//	var req dto.SubmitJobRequest
//	if err := dto.ParseAndValidate(c, &req); err != nil {
//	    return invalidRequest(c, err)
//	}
//
// # Validation Tags
//
// Common validation tags:
//   - required: Field must be present and non-empty
//   - gte=N / lte=N: Numeric bounds
//   - variable: Must be a known biophysical variable name
package dto
