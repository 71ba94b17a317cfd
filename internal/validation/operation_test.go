package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/models"
)

func validOp() *models.Operation {
	return &models.Operation{
		ID:              "9b2f7a6e-1c0d-4d7e-8a59-3f7a1b2c3d4e",
		DeviceID:        "device-a",
		Type:            models.OpCreate,
		EntityKind:      models.KindMeasurement,
		EntityID:        "measurement:M1",
		Payload:         json.RawMessage(`{"projectId":"P1","quantity":3}`),
		ClientTimestamp: 1700000000000,
	}
}

func TestValidateOperation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(op *models.Operation)
		wantClass models.ErrorClass
		wantErr   bool
	}{
		{
			name:    "valid create",
			mutate:  func(op *models.Operation) {},
			wantErr: false,
		},
		{
			name: "valid delete without payload",
			mutate: func(op *models.Operation) {
				op.Type = models.OpDelete
				op.Payload = nil
			},
			wantErr: false,
		},
		{
			name:      "empty id",
			mutate:    func(op *models.Operation) { op.ID = "" },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name:      "id with spaces",
			mutate:    func(op *models.Operation) { op.ID = "a b" },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name:      "unknown type",
			mutate:    func(op *models.Operation) { op.Type = "PATCH" },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name:      "unknown kind",
			mutate:    func(op *models.Operation) { op.EntityKind = "invoice" },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name:      "entity id without prefix",
			mutate:    func(op *models.Operation) { op.EntityID = "M1" },
			wantErr:   true,
			wantClass: models.ErrorClassReference,
		},
		{
			name:      "entity id of another kind",
			mutate:    func(op *models.Operation) { op.EntityID = "project:M1" },
			wantErr:   true,
			wantClass: models.ErrorClassReference,
		},
		{
			name:      "update without payload",
			mutate:    func(op *models.Operation) { op.Type = models.OpUpdate; op.Payload = json.RawMessage(`null`) },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name:      "payload is an array",
			mutate:    func(op *models.Operation) { op.Payload = json.RawMessage(`[1]`) },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name:      "malformed reference",
			mutate:    func(op *models.Operation) { op.Payload = json.RawMessage(`{"projectId":"statement:S1"}`) },
			wantErr:   true,
			wantClass: models.ErrorClassReference,
		},
		{
			name:      "zero timestamp",
			mutate:    func(op *models.Operation) { op.ClientTimestamp = 0 },
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
		{
			name: "payload too large",
			mutate: func(op *models.Operation) {
				op.Payload = json.RawMessage(`{"note":"` + strings.Repeat("x", MaxPayloadSize) + `"}`)
			},
			wantErr:   true,
			wantClass: models.ErrorClassValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := validOp()
			tt.mutate(op)

			err := ValidateOperation(op)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantClass, ClassOf(err))
			assert.True(t, tt.wantClass.Permanent())
		})
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("device id", "laptop_01.home"))
	assert.Error(t, ValidateID("device id", strings.Repeat("a", 129)))
	assert.Error(t, ValidateID("device id", "dev/1"))
}
