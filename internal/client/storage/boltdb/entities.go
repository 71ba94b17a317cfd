package boltdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

// GetEntity retrieves an entity by canonical id
func (s *Storage) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var entity *models.Entity
	err := s.db.View(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		entity, err = getEntity(entities, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// SaveEntity upserts an entity and its secondary indexes
func (s *Storage) SaveEntity(ctx context.Context, entity *models.Entity) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return putEntity(tx, entity)
	})
}

// DeleteEntity removes an entity together with its index entries
func (s *Storage) DeleteEntity(ctx context.Context, id string) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		old, err := getEntity(entities, id)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return nil
			}
			return err
		}
		if err := dropIndexes(tx, old); err != nil {
			return err
		}
		if err := entities.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete entity: %w", err)
		}
		return nil
	})
}

// dropIndexes удаляет записи сущности из индексов по виду и ссылкам
func dropIndexes(tx *bbolt.Tx, e *models.Entity) error {
	kindIdx, err := bucket(tx, bucketEntityKindIdx)
	if err != nil {
		return err
	}
	refIdx, err := bucket(tx, bucketEntityRefIdx)
	if err != nil {
		return err
	}

	id := []byte(e.ID)
	if err := kindIdx.Delete(compositeKey([]byte(e.Kind), id)); err != nil {
		return fmt.Errorf("failed to update kind index: %w", err)
	}
	for _, ref := range payloadRefs(e) {
		if err := refIdx.Delete(compositeKey([]byte(ref), id)); err != nil {
			return fmt.Errorf("failed to update ref index: %w", err)
		}
	}
	return nil
}

// ListEntities returns entities of one kind ordered by id
func (s *Storage) ListEntities(ctx context.Context, kind models.EntityKind, includeDeleted bool) ([]*models.Entity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var result []*models.Entity
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanIndex(tx, bucketEntityKindIdx, string(kind), func(e *models.Entity) {
			if includeDeleted || !e.Deleted() {
				result = append(result, e)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return result, nil
}

// ListReferencing returns live entities whose payload references ref
func (s *Storage) ListReferencing(ctx context.Context, ref string) ([]*models.Entity, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var result []*models.Entity
	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanIndex(tx, bucketEntityRefIdx, ref, func(e *models.Entity) {
			if !e.Deleted() {
				result = append(result, e)
			}
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list referencing entities: %w", err)
	}
	return result, nil
}

// scanIndex обходит индекс по первой части ключа и загружает сущности
func scanIndex(tx *bbolt.Tx, index []byte, first string, fn func(*models.Entity)) error {
	idx, err := bucket(tx, index)
	if err != nil {
		return err
	}
	entities, err := bucket(tx, bucketEntities)
	if err != nil {
		return err
	}

	prefix := prefixKey(first)
	c := idx.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		e, err := getEntity(entities, string(v))
		if err != nil {
			return fmt.Errorf("%s is inconsistent: %w", index, err)
		}
		fn(e)
	}
	return nil
}

func getEntity(entities *bbolt.Bucket, id string) (*models.Entity, error) {
	data := entities.Get([]byte(id))
	if data == nil {
		return nil, storage.ErrEntityNotFound
	}

	e := &models.Entity{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return e, nil
}

// putEntity сохраняет сущность и перестраивает её ссылочный индекс
func putEntity(tx *bbolt.Tx, entity *models.Entity) error {
	if entity.ID == "" || !entity.Kind.Valid() {
		return fmt.Errorf("invalid entity %q of kind %q", entity.ID, entity.Kind)
	}

	entities, err := bucket(tx, bucketEntities)
	if err != nil {
		return err
	}
	kindIdx, err := bucket(tx, bucketEntityKindIdx)
	if err != nil {
		return err
	}
	refIdx, err := bucket(tx, bucketEntityRefIdx)
	if err != nil {
		return err
	}

	id := []byte(entity.ID)

	// Старые ссылки удаляем: payload мог поменять projectId
	if data := entities.Get(id); data != nil {
		var old models.Entity
		if err := json.Unmarshal(data, &old); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		for _, ref := range payloadRefs(&old) {
			if err := refIdx.Delete(compositeKey([]byte(ref), id)); err != nil {
				return fmt.Errorf("failed to update ref index: %w", err)
			}
		}
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := entities.Put(id, data); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	if err := kindIdx.Put(compositeKey([]byte(entity.Kind), id), id); err != nil {
		return fmt.Errorf("failed to update kind index: %w", err)
	}
	for _, ref := range payloadRefs(entity) {
		if err := refIdx.Put(compositeKey([]byte(ref), id), id); err != nil {
			return fmt.Errorf("failed to update ref index: %w", err)
		}
	}

	return nil
}

// payloadRefs извлекает значения ссылочных полей payload.
// Payload уже нормализован, поэтому значения имеют форму kind:id.
func payloadRefs(e *models.Entity) []string {
	fields := e.Kind.RefFields()
	if len(fields) == 0 || len(e.Payload) == 0 {
		return nil
	}

	doc, err := models.DecodePayload(e.Payload)
	if err != nil {
		return nil
	}

	var refs []string
	for field := range fields {
		if s, ok := doc[field].(string); ok && s != "" {
			refs = append(refs, s)
		}
	}
	return refs
}
