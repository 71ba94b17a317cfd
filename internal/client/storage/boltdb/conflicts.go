package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

// SaveConflict creates or replaces the record for conflict.EntityID
func (s *Storage) SaveConflict(ctx context.Context, conflict *models.Conflict) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(conflict)
	if err != nil {
		return fmt.Errorf("failed to marshal conflict: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(conflict.EntityID), data); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		return nil
	})
}

// GetConflict retrieves the record for an entity
func (s *Storage) GetConflict(ctx context.Context, entityID string) (*models.Conflict, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var conflict *models.Conflict
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		data := b.Get([]byte(entityID))
		if data == nil {
			return storage.ErrConflictNotFound
		}
		conflict = &models.Conflict{}
		if err := json.Unmarshal(data, conflict); err != nil {
			return fmt.Errorf("failed to unmarshal conflict: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conflict, nil
}

// ListConflicts returns all open conflicts ordered by entity id
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.Conflict, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var result []*models.Conflict
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var c models.Conflict
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict: %w", err)
			}
			if c.Open() {
				result = append(result, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return result, nil
}

// DeleteConflict removes the record; missing record is not an error
func (s *Storage) DeleteConflict(ctx context.Context, entityID string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		if err := b.Delete([]byte(entityID)); err != nil {
			return fmt.Errorf("failed to delete conflict: %w", err)
		}
		return nil
	})
}
