package storage

import "errors"

// Common client storage errors
var (
	// ErrOperationNotFound indicates that operation is not in the log
	ErrOperationNotFound = errors.New("operation not found")

	// ErrEntityNotFound indicates that entity was not found
	ErrEntityNotFound = errors.New("entity not found")

	// ErrConflictNotFound indicates that entity has no conflict record
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrDuplicateOperation indicates that operation id is already in the log
	ErrDuplicateOperation = errors.New("operation already exists")

	// ErrWatermarkRegression indicates an attempt to move the pull watermark back
	ErrWatermarkRegression = errors.New("watermark cannot move backwards")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrLocked indicates that another process (usually the sync daemon) holds the database
	ErrLocked = errors.New("database is locked by another opsync process")
)
