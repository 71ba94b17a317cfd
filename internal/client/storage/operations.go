package storage

import (
	"context"
	"time"

	"github.com/iudanet/opsync/internal/models"
)

// OperationLog defines the durable local log of mutations.
// Every method is a local write or read, none of them touches the network.
type OperationLog interface {
	// Append adds a new operation to the log
	// Returns ErrDuplicateOperation if the id is already present
	Append(ctx context.Context, op *models.Operation) error

	// ApplyLocal appends op and writes entity in one transaction
	ApplyLocal(ctx context.Context, op *models.Operation, entity *models.Entity) error

	// GetOperation retrieves an operation by id
	// Returns ErrOperationNotFound if it doesn't exist
	GetOperation(ctx context.Context, id string) (*models.Operation, error)

	// Pending returns unsynced operations of the user ordered by ClientTimestamp
	Pending(ctx context.Context, userID string) ([]*models.Operation, error)

	// PendingCount returns the number of unsynced operations of the user
	PendingCount(ctx context.Context, userID string) (int, error)

	// EntityOperations returns operations still in the log for one entity,
	// ordered by ClientTimestamp
	EntityOperations(ctx context.Context, entityID string) ([]*models.Operation, error)

	// MarkSynced marks acknowledged operations as synced in one transaction
	MarkSynced(ctx context.Context, acks []models.Ack, syncedAt time.Time) error

	// Remove drops operations from the log (permanently rejected ones)
	Remove(ctx context.Context, ids []string) error

	// Prune deletes synced operations acknowledged before olderThan.
	// Unsynced operations are never pruned.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}

// EntityStore defines the materialized projection of the log
type EntityStore interface {
	// GetEntity retrieves an entity by canonical id, tombstones included
	// Returns ErrEntityNotFound if entity doesn't exist
	GetEntity(ctx context.Context, id string) (*models.Entity, error)

	// SaveEntity upserts an entity and its secondary indexes
	SaveEntity(ctx context.Context, entity *models.Entity) error

	// DeleteEntity removes an entity and its indexes entirely.
	// Used when a never-acknowledged CREATE is rolled back; no-op if missing.
	DeleteEntity(ctx context.Context, id string) error

	// ListEntities returns entities of one kind
	ListEntities(ctx context.Context, kind models.EntityKind, includeDeleted bool) ([]*models.Entity, error)

	// ListReferencing returns live entities whose payload references ref
	ListReferencing(ctx context.Context, ref string) ([]*models.Entity, error)
}
