// Package service contains the business logic layer for Canopy.
//
// Services coordinate between handlers and repositories, implementing
// domain rules and orchestrating operations across multiple repositories.
//
// Services depend on repository interfaces defined in this package,
// following the dependency inversion principle. Each service handles
// a specific domain area (jobs, sites, product queries).
//
// # Architecture
//
// The service layer sits between:
//   - HTTP handlers (presentation layer)
//   - Repository implementations (data access layer)
//
// Services are responsible for:
//   - Business logic and validation
//   - Splitting job submissions into per-site date-window shards
//   - Orchestrating multiple repository calls
//   - Enqueuing shard work for the task queue
//
// # Thread Safety
//
// All services are designed to be safe for concurrent use from
// multiple goroutines.
package service
