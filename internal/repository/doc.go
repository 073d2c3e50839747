// Package repository contains data access implementations for Canopy.
//
// Repositories provide persistence operations for domain entities,
// abstracting the underlying data stores (PostgreSQL, ClickHouse).
//
// # Architecture
//
// Repository interfaces are defined at the service layer (consumer-defined
// interfaces) following Go's dependency inversion best practices.
// This package contains the concrete implementations.
//
// # Data Stores
//
// The system uses multiple specialized data stores:
//   - PostgreSQL: Transactional data (sites, jobs, shards, scene catalog,
//     land cover products, trained network banks)
//   - ClickHouse: High-volume analytical data (extracted pixel samples)
//
// # Thread Safety
//
// All repository implementations are safe for concurrent use.
// Connection pools are managed at the database layer.
package repository
