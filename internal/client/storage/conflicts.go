package storage

import (
	"context"

	"github.com/iudanet/opsync/internal/models"
)

// ConflictStorage defines interface for conflict records, at most one per entity
type ConflictStorage interface {
	// SaveConflict creates or replaces the record for conflict.EntityID
	SaveConflict(ctx context.Context, conflict *models.Conflict) error

	// GetConflict retrieves the record for an entity
	// Returns ErrConflictNotFound if the entity has no conflict
	GetConflict(ctx context.Context, entityID string) (*models.Conflict, error)

	// ListConflicts returns all open conflicts
	ListConflicts(ctx context.Context) ([]*models.Conflict, error)

	// DeleteConflict removes the record; missing record is not an error
	DeleteConflict(ctx context.Context, entityID string) error
}

// Store combines all client storages backed by one database
type Store interface {
	OperationLog
	EntityStore
	MetadataStorage
	ConflictStorage
	Close() error
}
