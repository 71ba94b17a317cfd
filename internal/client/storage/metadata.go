package storage

import (
	"context"

	"github.com/iudanet/opsync/internal/models"
)

// MetadataStorage defines interface for storing client metadata
type MetadataStorage interface {
	// EnsureDeviceID returns the persisted device id, generating it on first call
	EnsureDeviceID(ctx context.Context) (string, error)

	// GetSyncContext retrieves the pull watermark
	// Returns zero watermark if no sync has been performed yet
	GetSyncContext(ctx context.Context) (*models.SyncContext, error)

	// SaveSyncContext persists the pull watermark
	// Returns ErrWatermarkRegression if ServerSeq would move backwards
	SaveSyncContext(ctx context.Context, sc *models.SyncContext) error
}
