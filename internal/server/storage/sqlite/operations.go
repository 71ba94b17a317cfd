package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

const operationColumns = `
	server_seq, op_id, user_id, device_id, op_type, entity_kind, entity_id,
	payload, payload_hash, client_timestamp, base_seq, received_at
`

// AcceptOperations stores a batch in one transaction.
// Решения о дедупликации принимаются внутри транзакции, поэтому
// два параллельных push одного id не получат разные serverSeq.
func (s *Storage) AcceptOperations(ctx context.Context, userID string, ops []*models.Operation, receivedAt time.Time) (*storage.AcceptResult, error) {
	if len(ops) == 0 {
		return nil, storage.ErrEmptyBatch
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	result := &storage.AcceptResult{}

	for _, op := range ops {
		hash := PayloadHash(op.Payload)

		existing, err := findByOpID(ctx, tx, op.ID)
		if err != nil && !errors.Is(err, storage.ErrOperationNotFound) {
			return nil, err
		}

		if existing != nil {
			// Повторная отправка: подтверждаем тем же номером
			switch {
			case existing.UserID != userID:
				result.Failed = append(result.Failed, models.Failure{
					OpID:    op.ID,
					Class:   models.ErrorClassValidation,
					Message: "operation id belongs to another scope",
				})
			case existing.PayloadHash != hash:
				result.Failed = append(result.Failed, models.Failure{
					OpID:    op.ID,
					Class:   models.ErrorClassValidation,
					Message: "operation id reused with a different payload",
				})
			default:
				result.Acks = append(result.Acks, models.Ack{OpID: op.ID, ServerSeq: existing.ServerSeq})
			}
			continue
		}

		if op.Type == models.OpCreate {
			exists, err := entityCreated(ctx, tx, userID, op.EntityID)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Failed = append(result.Failed, models.Failure{
					OpID:    op.ID,
					Class:   models.ErrorClassUniqueness,
					Message: fmt.Sprintf("entity %s already exists", op.EntityID),
				})
				continue
			}
		}

		seq, err := insertOperation(ctx, tx, userID, op, hash, receivedAt)
		if err != nil {
			return nil, err
		}
		result.Acks = append(result.Acks, models.Ack{OpID: op.ID, ServerSeq: seq})
		result.Inserted++
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(server_seq), 0) FROM operations WHERE user_id = ?`, userID,
	).Scan(&result.ServerSeq); err != nil {
		return nil, fmt.Errorf("failed to read latest server seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

// OperationsSince returns records of the user with serverSeq > since
func (s *Storage) OperationsSince(ctx context.Context, userID string, since int64, limit int) ([]*models.ServerOperation, error) {
	query := `SELECT ` + operationColumns + `
		FROM operations
		WHERE user_id = ? AND server_seq > ?
		ORDER BY server_seq ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// GetOperation retrieves a record by operation id
func (s *Storage) GetOperation(ctx context.Context, opID string) (*models.ServerOperation, error) {
	return findByOpID(ctx, s.db, opID)
}

// Status returns diagnostic counters for the user
func (s *Storage) Status(ctx context.Context, userID string) (*storage.Status, error) {
	st := &storage.Status{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(server_seq), 0) FROM operations WHERE user_id = ?`,
		userID,
	).Scan(&st.TotalOperations, &st.LatestServerSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return st, nil
}

// PayloadHash возвращает blake2b-256 дайджест payload в hex
func PayloadHash(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// querier общий интерфейс *sql.DB и *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findByOpID(ctx context.Context, tx querier, opID string) (*models.ServerOperation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+operationColumns+` FROM operations WHERE op_id = ?`, opID)

	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return op, nil
}

func entityCreated(ctx context.Context, tx *sql.Tx, userID, entityID string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE user_id = ? AND entity_id = ? AND op_type = ?`,
		userID, entityID, string(models.OpCreate),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check entity: %w", err)
	}
	return n > 0, nil
}

func insertOperation(ctx context.Context, tx *sql.Tx, userID string, op *models.Operation, hash string, receivedAt time.Time) (int64, error) {
	query := `
		INSERT INTO operations (
			op_id, user_id, device_id, op_type, entity_kind, entity_id,
			payload, payload_hash, client_timestamp, base_seq, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var payload any
	if len(op.Payload) > 0 {
		payload = string(op.Payload)
	}

	res, err := tx.ExecContext(ctx, query,
		op.ID,
		userID,
		op.DeviceID,
		string(op.Type),
		string(op.EntityKind),
		op.EntityID,
		payload,
		hash,
		op.ClientTimestamp,
		op.BaseSeq,
		receivedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert operation: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get server seq: %w", err)
	}
	return seq, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*models.ServerOperation, error) {
	op := &models.ServerOperation{}
	var (
		opType, kind string
		payload      sql.NullString
		receivedAt   int64
	)

	err := row.Scan(
		&op.ServerSeq,
		&op.ID,
		&op.UserID,
		&op.DeviceID,
		&opType,
		&kind,
		&op.EntityID,
		&payload,
		&op.PayloadHash,
		&op.ClientTimestamp,
		&op.BaseSeq,
		&receivedAt,
	)
	if err != nil {
		return nil, err
	}

	op.Type = models.OpType(opType)
	op.EntityKind = models.EntityKind(kind)
	if payload.Valid {
		op.Payload = []byte(payload.String)
	}
	op.ReceivedAt = time.UnixMilli(receivedAt).UTC()
	op.Synced = true

	return op, nil
}

func scanOperations(rows *sql.Rows) ([]*models.ServerOperation, error) {
	var result []*models.ServerOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return result, nil
}
