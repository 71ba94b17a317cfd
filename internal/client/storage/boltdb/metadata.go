package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

const (
	keyDeviceID    = "device_id"
	keySyncContext = "sync_context"
)

// EnsureDeviceID returns the persisted device id, generating it on first call
func (s *Storage) EnsureDeviceID(ctx context.Context) (string, error) {
	if s.db == nil {
		return "", storage.ErrStorageClosed
	}

	var deviceID string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		if v := meta.Get([]byte(keyDeviceID)); v != nil {
			deviceID = string(v)
			return nil
		}

		// Первый запуск: идентификатор устройства создаётся один раз
		deviceID = uuid.New().String()
		if err := meta.Put([]byte(keyDeviceID), []byte(deviceID)); err != nil {
			return fmt.Errorf("failed to save device id: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to ensure device id: %w", err)
	}

	return deviceID, nil
}

// GetSyncContext retrieves the pull watermark
// Returns zero watermark if no sync has been performed yet
func (s *Storage) GetSyncContext(ctx context.Context) (*models.SyncContext, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	sc := &models.SyncContext{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		if v := meta.Get([]byte(keyDeviceID)); v != nil {
			sc.DeviceID = string(v)
		}

		data := meta.Get([]byte(keySyncContext))
		if data == nil {
			// Если watermark не найден - первая синхронизация
			return nil
		}
		if err := json.Unmarshal(data, sc); err != nil {
			return fmt.Errorf("failed to unmarshal sync context: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get sync context: %w", err)
	}

	return sc, nil
}

// SaveSyncContext persists the pull watermark; ServerSeq only moves forward
func (s *Storage) SaveSyncContext(ctx context.Context, sc *models.SyncContext) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}

		if data := meta.Get([]byte(keySyncContext)); data != nil {
			var current models.SyncContext
			if err := json.Unmarshal(data, &current); err != nil {
				return fmt.Errorf("failed to unmarshal sync context: %w", err)
			}
			if sc.ServerSeq < current.ServerSeq {
				return fmt.Errorf("%w: %d < %d", storage.ErrWatermarkRegression, sc.ServerSeq, current.ServerSeq)
			}
		}

		data, err := json.Marshal(sc)
		if err != nil {
			return fmt.Errorf("failed to marshal sync context: %w", err)
		}
		if err := meta.Put([]byte(keySyncContext), data); err != nil {
			return fmt.Errorf("failed to save sync context: %w", err)
		}
		return nil
	})
}
