package storage

import "errors"

// Common storage errors
var (
	// ErrOperationNotFound indicates that operation was not found in storage
	ErrOperationNotFound = errors.New("operation not found")

	// ErrEmptyBatch indicates that push batch has no operations
	ErrEmptyBatch = errors.New("empty batch")
)
