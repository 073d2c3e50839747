// Package handler contains HTTP request handlers for Canopy.
//
// Handlers are the entry point for HTTP requests, responsible for:
//   - Request parsing and validation
//   - Calling appropriate services
//   - Response formatting
//   - Error response mapping
//
// # Route Organization
//
// Resource routes live under /api/v1; health probes, version, metrics
// and the API documentation are served at the root.
//
// # Error Handling
//
// Handlers convert domain errors to appropriate HTTP status codes
// using the apperrors package for consistent error responses.
//
// # Thread Safety
//
// All handlers are safe for concurrent use.
package handler
