// Package domain contains the core entities and value objects for platewatch.
//
// This package is the innermost layer of the application. It has no
// dependencies on infrastructure concerns (video capture, OCR engines,
// databases, logging) and contains only pure rules and invariants.
//
// # Entities
//
//   - [Frame]: a raster image taken from the video source, with its sequence number
//   - [Region]: an axis-aligned rectangle flagged by the detector
//   - [Candidate]: recognized text and its confidence for one region
//   - [RegionProfile]: the plate grammar selected at startup
//   - [Window]: the deduplicated set of plates accepted in one time interval
//   - [Record]: one persisted (start, end, plate) row
//
// # Design Principles
//
// Domain entities are:
//   - Free of infrastructure dependencies
//   - Focused on invariants (set semantics, end after start, whole-string grammar match)
//   - Testable without mocks or external systems
package domain
