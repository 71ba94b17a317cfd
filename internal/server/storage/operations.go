package storage

import (
	"context"
	"time"

	"github.com/iudanet/opsync/internal/models"
)

// AcceptResult итог приёма одного батча операций
type AcceptResult struct {
	Acks      []models.Ack     // Acks подтверждённые операции, включая повторы
	Failed    []models.Failure // Failed отклонённые операции с классом ошибки
	Inserted  int              // Inserted количество новых записей
	ServerSeq int64            // ServerSeq последний номер в области пользователя
}

// Status диагностическая сводка по области пользователя
type Status struct {
	TotalOperations int64
	LatestServerSeq int64
}

// OperationStorage defines the authoritative operation log
type OperationStorage interface {
	// AcceptOperations stores a batch in one transaction.
	// A known operation id is acknowledged with its existing serverSeq.
	AcceptOperations(ctx context.Context, userID string, ops []*models.Operation, receivedAt time.Time) (*AcceptResult, error)

	// OperationsSince returns records of the user with serverSeq > since,
	// ordered by serverSeq, at most limit records
	OperationsSince(ctx context.Context, userID string, since int64, limit int) ([]*models.ServerOperation, error)

	// GetOperation retrieves a record by operation id
	// Returns ErrOperationNotFound if it doesn't exist
	GetOperation(ctx context.Context, opID string) (*models.ServerOperation, error)

	// Status returns diagnostic counters for the user
	Status(ctx context.Context, userID string) (*Status, error)
}

// Archive запись о выгруженном в object storage диапазоне
type Archive struct {
	CreatedAt time.Time
	ObjectKey string
	FromSeq   int64
	ToSeq     int64
	Count     int
}

// ArchiveStorage defines cursor bookkeeping for operation log export
type ArchiveStorage interface {
	// ArchiveCursor returns the last archived serverSeq, 0 if nothing archived
	ArchiveCursor(ctx context.Context) (int64, error)

	// OperationsAfter returns records of all users with serverSeq > since
	OperationsAfter(ctx context.Context, since int64, limit int) ([]*models.ServerOperation, error)

	// RecordArchive stores an exported range and moves the cursor
	RecordArchive(ctx context.Context, archive *Archive) error

	// ListArchives returns exported ranges ordered by FromSeq
	ListArchives(ctx context.Context) ([]*Archive, error)
}
