// Package backend provides the OpenForum API server.

// This package contains the application entry points under cmd/. The
// actual implementation is organized into subpackages:

// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/realtime: WebSocket fan-out core (rooms, ingestion, broadcast)
// - internal/models: Data models and database schemas
// - internal/auth: Authentication and token services
// - internal/repository: Persistence operations for the messaging domain
// - internal/storage: File storage (S3) operations
// - internal/database: Database connection and migrations
// - internal/presence: Redis-backed online presence tracking
// - internal/middleware: HTTP middleware (auth, logging, metrics)
// - internal/metrics: Prometheus instrumentation
// - internal/seed: Development data seeding

// See the individual package documentation for detailed API reference.
package backend
