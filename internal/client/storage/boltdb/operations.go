package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

// Append adds a new operation to the log
func (s *Storage) Append(ctx context.Context, op *models.Operation) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return putNewOperation(tx, op)
	})
}

// ApplyLocal appends op and writes entity in one transaction,
// so a crash cannot leave one without the other
func (s *Storage) ApplyLocal(ctx context.Context, op *models.Operation, entity *models.Entity) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putNewOperation(tx, op); err != nil {
			return err
		}
		return putEntity(tx, entity)
	})
}

// GetOperation retrieves an operation by id
func (s *Storage) GetOperation(ctx context.Context, id string) (*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var op *models.Operation
	err := s.db.View(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		op, err = getOperation(ops, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Pending returns unsynced operations of the user ordered by ClientTimestamp
func (s *Storage) Pending(ctx context.Context, userID string) ([]*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var result []*models.Operation
	err := s.db.View(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, bucketPendingIdx)
		if err != nil {
			return err
		}

		// ключи индекса отсортированы по userID, затем по timestamp
		prefix := prefixKey(userID)
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			op, err := getOperation(ops, string(v))
			if err != nil {
				return fmt.Errorf("pending index is inconsistent: %w", err)
			}
			result = append(result, op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operations: %w", err)
	}

	return result, nil
}

// PendingCount returns the number of unsynced operations of the user
func (s *Storage) PendingCount(ctx context.Context, userID string) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx, err := bucket(tx, bucketPendingIdx)
		if err != nil {
			return err
		}
		prefix := prefixKey(userID)
		c := idx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending operations: %w", err)
	}
	return count, nil
}

// EntityOperations returns operations still in the log for one entity
func (s *Storage) EntityOperations(ctx context.Context, entityID string) ([]*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var result []*models.Operation
	err := s.db.View(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, bucketEntityOpsIdx)
		if err != nil {
			return err
		}

		prefix := prefixKey(entityID)
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			op, err := getOperation(ops, string(v))
			if err != nil {
				return fmt.Errorf("entity index is inconsistent: %w", err)
			}
			result = append(result, op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get entity operations: %w", err)
	}

	return result, nil
}

// MarkSynced marks acknowledged operations as synced in one transaction.
// Unknown ids are skipped: the operation may have been removed by conflict resolution.
func (s *Storage) MarkSynced(ctx context.Context, acks []models.Ack, syncedAt time.Time) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(acks) == 0 {
		return nil
	}

	syncedAt = syncedAt.UTC()
	return s.db.Update(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		pending, err := bucket(tx, bucketPendingIdx)
		if err != nil {
			return err
		}

		for _, ack := range acks {
			op, err := getOperation(ops, ack.OpID)
			if err != nil {
				if errors.Is(err, storage.ErrOperationNotFound) {
					continue
				}
				return err
			}
			if op.Synced {
				continue
			}

			op.Synced = true
			op.SyncedAt = &syncedAt
			op.ServerSeq = ack.ServerSeq

			if err := pending.Delete(pendingKey(op)); err != nil {
				return fmt.Errorf("failed to update pending index: %w", err)
			}
			if err := putOperation(ops, op); err != nil {
				return err
			}
		}
		return nil
	})
}

// Remove drops operations from the log
func (s *Storage) Remove(ctx context.Context, ids []string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}
	if len(ids) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			if err := deleteOperation(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// Prune deletes synced operations acknowledged before olderThan
func (s *Storage) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	if s.db == nil {
		return 0, storage.ErrStorageClosed
	}

	var pruned int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}

		// Собираем id заранее: удалять ключи во время ForEach нельзя
		var stale []string
		err = ops.ForEach(func(k, v []byte) error {
			var op models.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			if op.Synced && op.SyncedAt != nil && op.SyncedAt.Before(olderThan) {
				stale = append(stale, op.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, id := range stale {
			if err := deleteOperation(tx, id); err != nil {
				return err
			}
		}
		pruned = len(stale)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune operations: %w", err)
	}

	return pruned, nil
}

// AllOperations returns every operation in the log ordered by ClientTimestamp
func (s *Storage) AllOperations(ctx context.Context) ([]*models.Operation, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var result []*models.Operation
	err := s.db.View(func(tx *bbolt.Tx) error {
		ops, err := bucket(tx, bucketOps)
		if err != nil {
			return err
		}
		return ops.ForEach(func(k, v []byte) error {
			var op models.Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("failed to unmarshal operation: %w", err)
			}
			result = append(result, &op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get all operations: %w", err)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[j].IsNewerThan(result[i])
	})
	return result, nil
}

func pendingKey(op *models.Operation) []byte {
	return compositeKey([]byte(op.UserID), int64Key(op.ClientTimestamp), []byte(op.ID))
}

func entityOpKey(op *models.Operation) []byte {
	return compositeKey([]byte(op.EntityID), int64Key(op.ClientTimestamp), []byte(op.ID))
}

func getOperation(ops *bbolt.Bucket, id string) (*models.Operation, error) {
	data := ops.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrOperationNotFound
	}

	op := &models.Operation{}
	if err := json.Unmarshal(data, op); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation: %w", err)
	}
	return op, nil
}

func putOperation(ops *bbolt.Bucket, op *models.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operation: %w", err)
	}
	if err := ops.Put([]byte(op.ID), data); err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}
	return nil
}

// putNewOperation сохраняет операцию и её индексы
func putNewOperation(tx *bbolt.Tx, op *models.Operation) error {
	if op.ID == "" {
		return fmt.Errorf("operation id is empty")
	}

	ops, err := bucket(tx, bucketOps)
	if err != nil {
		return err
	}
	if ops.Get([]byte(op.ID)) != nil {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateOperation, op.ID)
	}
	if err := putOperation(ops, op); err != nil {
		return err
	}

	if !op.Synced {
		pending, err := bucket(tx, bucketPendingIdx)
		if err != nil {
			return err
		}
		if err := pending.Put(pendingKey(op), []byte(op.ID)); err != nil {
			return fmt.Errorf("failed to update pending index: %w", err)
		}
	}

	byEntity, err := bucket(tx, bucketEntityOpsIdx)
	if err != nil {
		return err
	}
	if err := byEntity.Put(entityOpKey(op), []byte(op.ID)); err != nil {
		return fmt.Errorf("failed to update entity index: %w", err)
	}

	return nil
}

// deleteOperation удаляет операцию и её индексы; отсутствие операции не ошибка
func deleteOperation(tx *bbolt.Tx, id string) error {
	ops, err := bucket(tx, bucketOps)
	if err != nil {
		return err
	}
	op, err := getOperation(ops, id)
	if err != nil {
		if errors.Is(err, storage.ErrOperationNotFound) {
			return nil
		}
		return err
	}

	pending, err := bucket(tx, bucketPendingIdx)
	if err != nil {
		return err
	}
	byEntity, err := bucket(tx, bucketEntityOpsIdx)
	if err != nil {
		return err
	}

	if err := pending.Delete(pendingKey(op)); err != nil {
		return fmt.Errorf("failed to update pending index: %w", err)
	}
	if err := byEntity.Delete(entityOpKey(op)); err != nil {
		return fmt.Errorf("failed to update entity index: %w", err)
	}
	if err := ops.Delete([]byte(id)); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}
