// Package wire converts between domain operations and their protocol form.
package wire

import (
	"time"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/pkg/api"
)

// ToOperation конвертирует операцию журнала в формат протокола
func ToOperation(op *models.Operation) api.Operation {
	return api.Operation{
		ID:              op.ID,
		DeviceID:        op.DeviceID,
		UserID:          op.UserID,
		Type:            string(op.Type),
		EntityKind:      string(op.EntityKind),
		EntityID:        op.EntityID,
		Payload:         op.Payload,
		ClientTimestamp: op.ClientTimestamp,
		BaseSeq:         op.BaseSeq,
	}
}

// FromOperation конвертирует операцию протокола без проверки полей
func FromOperation(in api.Operation) *models.Operation {
	return &models.Operation{
		ID:              in.ID,
		DeviceID:        in.DeviceID,
		UserID:          in.UserID,
		Type:            models.OpType(in.Type),
		EntityKind:      models.EntityKind(in.EntityKind),
		EntityID:        in.EntityID,
		Payload:         in.Payload,
		ClientTimestamp: in.ClientTimestamp,
		BaseSeq:         in.BaseSeq,
	}
}

// ToServerOperation конвертирует серверную запись в формат протокола
func ToServerOperation(op *models.ServerOperation) api.ServerOperation {
	return api.ServerOperation{
		Operation:  ToOperation(&op.Operation),
		ServerSeq:  op.ServerSeq,
		ReceivedAt: op.ReceivedAt.UnixMilli(),
	}
}

// FromServerOperation конвертирует запись протокола; запись считается
// синхронизированной, так как уже имеет serverSeq
func FromServerOperation(in api.ServerOperation) *models.ServerOperation {
	op := FromOperation(in.Operation)
	op.ServerSeq = in.ServerSeq
	op.Synced = true

	return &models.ServerOperation{
		Operation:  *op,
		ReceivedAt: time.UnixMilli(in.ReceivedAt),
	}
}
