package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

// ArchiveCursor returns the last archived serverSeq, 0 if nothing archived
func (s *Storage) ArchiveCursor(ctx context.Context) (int64, error) {
	var cursor int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(to_seq), 0) FROM archives`).Scan(&cursor)
	if err != nil {
		return 0, fmt.Errorf("failed to get archive cursor: %w", err)
	}
	return cursor, nil
}

// OperationsAfter returns records of all users with serverSeq > since
func (s *Storage) OperationsAfter(ctx context.Context, since int64, limit int) ([]*models.ServerOperation, error) {
	query := `SELECT ` + operationColumns + `
		FROM operations
		WHERE server_seq > ?
		ORDER BY server_seq ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// RecordArchive stores an exported range and moves the cursor
func (s *Storage) RecordArchive(ctx context.Context, archive *storage.Archive) error {
	query := `
		INSERT INTO archives (object_key, from_seq, to_seq, op_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		archive.ObjectKey,
		archive.FromSeq,
		archive.ToSeq,
		archive.Count,
		archive.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record archive: %w", err)
	}
	return nil
}

// ListArchives returns exported ranges ordered by FromSeq
func (s *Storage) ListArchives(ctx context.Context) ([]*storage.Archive, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT object_key, from_seq, to_seq, op_count, created_at
		FROM archives
		ORDER BY from_seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query archives: %w", err)
	}
	defer rows.Close()

	var result []*storage.Archive
	for rows.Next() {
		a := &storage.Archive{}
		var createdAt int64
		if err := rows.Scan(&a.ObjectKey, &a.FromSeq, &a.ToSeq, &a.Count, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}
