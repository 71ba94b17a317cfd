package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/opsync/internal/models"
)

func TestServerOperation_Conversion(t *testing.T) {
	received := time.UnixMilli(1700000000123)
	op := &models.ServerOperation{
		ReceivedAt: received,
		Operation: models.Operation{
			ID:              "op-1",
			DeviceID:        "device-a",
			UserID:          "user-1",
			Type:            models.OpUpdate,
			EntityKind:      models.KindStatement,
			EntityID:        "statement:S1",
			Payload:         json.RawMessage(`{"total":10}`),
			ClientTimestamp: 1700000000000,
			BaseSeq:         4,
			ServerSeq:       7,
		},
	}

	out := ToServerOperation(op)
	assert.Equal(t, "UPDATE", out.Type)
	assert.Equal(t, "statement", out.EntityKind)
	assert.Equal(t, int64(7), out.ServerSeq)
	assert.Equal(t, int64(1700000000123), out.ReceivedAt)

	back := FromServerOperation(out)
	assert.True(t, back.Synced)
	assert.Equal(t, op.Operation.ID, back.ID)
	assert.Equal(t, op.Operation.BaseSeq, back.BaseSeq)
	assert.Equal(t, op.Operation.ServerSeq, back.ServerSeq)
	assert.True(t, received.Equal(back.ReceivedAt))
	assert.JSONEq(t, `{"total":10}`, string(back.Payload))
}
