// Package domain contains the core business entities and types for Canopy.
//
// This package defines:
//   - Entity types (Site, Scene, Job, Shard, Sample, etc.)
//   - Value objects and enums
//   - Input/output types for service operations
//
// # Design Philosophy
//
// Domain types are persistence-agnostic and represent the core
// business concepts independent of how they are stored or transmitted.
//
// # Key Entities
//
//   - Site: A registered area of interest with an observation window
//   - Scene: One catalog granule of sensor imagery
//   - Job: A submitted sampling or mapping run over a site range
//   - Shard: One site and date window slice of a job
//   - Sample: One sampled pixel band value bound for the warehouse
//   - NetworkAsset: Stored coefficients for one retrieval network
//
// # Naming Conventions
//
// Types ending in "Input" are used for create/update operations.
// Types ending in "Filter" are used for query operations.
package domain
