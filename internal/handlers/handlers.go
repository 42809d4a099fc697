// Package handlers contains the HTTP handlers for the REST API. The
// realtime websocket endpoints live in internal/realtime; everything
// here serves request/response traffic over the same data model.
package handlers

import (
	"github.com/openforum/backend/internal/auth"
	"github.com/openforum/backend/internal/presence"
	"github.com/openforum/backend/internal/repository"
	"github.com/openforum/backend/internal/storage"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth     *auth.Service
	repo     *repository.Repository
	blobs    storage.BlobStore
	presence *presence.Tracker
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService *auth.Service, repo *repository.Repository, blobs storage.BlobStore) *Handlers {
	return &Handlers{
		auth:  authService,
		repo:  repo,
		blobs: blobs,
	}
}

// SetPresenceTracker sets the optional Redis presence tracker
func (h *Handlers) SetPresenceTracker(t *presence.Tracker) {
	h.presence = t
}
