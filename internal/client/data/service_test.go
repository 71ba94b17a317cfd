package data

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/client/storage/boltdb"
	"github.com/iudanet/opsync/internal/clock"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/validation"
)

func setupService(t *testing.T) (*service, *boltdb.Storage) {
	t.Helper()

	store, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fixed := time.UnixMilli(1_700_000_000_000)
	svc := NewService(store, clock.NewWithSource(func() time.Time { return fixed }), "u1").(*service)

	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return svc, store
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	op, err := svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"House","status":"draft"}`))
	require.NoError(t, err)

	assert.Equal(t, models.OpCreate, op.Type)
	assert.Equal(t, "project:P1", op.EntityID)
	assert.Equal(t, "u1", op.UserID)
	assert.NotEmpty(t, op.DeviceID)
	assert.Equal(t, int64(1_700_000_000_000), op.ClientTimestamp)
	assert.Zero(t, op.BaseSeq)

	// Операция попала в журнал, сущность видна сразу
	pending, err := store.Pending(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.ID, pending[0].ID)

	entity, err := svc.Get(ctx, "project:P1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"House","status":"draft"}`, string(entity.Payload))
	assert.Equal(t, op.ID, entity.LastOpID)
}

func TestService_CreateGeneratesID(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	op, err := svc.Create(ctx, models.KindAttachment, "", json.RawMessage(`{"file":"a.pdf"}`))
	require.NoError(t, err)
	assert.Equal(t, "attachment:id-1", op.EntityID)
	assert.Equal(t, "id-2", op.ID)
}

func TestService_CreateNormalizesReferences(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"House"}`))
	require.NoError(t, err)

	op, err := svc.Create(ctx, models.KindMeasurement, "measurement:M1",
		json.RawMessage(`{"projectId":"P1","subdocumentId":"subdocument:S1","quantity":3}`))
	require.NoError(t, err)
	assert.Equal(t, "measurement:M1", op.EntityID)
	assert.JSONEq(t, `{"projectId":"project:P1","subdocumentId":"subdocument:S1","quantity":3}`, string(op.Payload))

	refs, err := svc.ListReferencing(ctx, "project:P1")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "measurement:M1", refs[0].ID)
}

func TestService_CreateErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"House"}`))
	require.NoError(t, err)

	tests := []struct {
		name    string
		kind    models.EntityKind
		id      string
		payload string
		wantErr error
	}{
		{"existing entity", models.KindProject, "P1", `{"name":"Again"}`, ErrEntityExists},
		{"unknown kind", models.EntityKind("invoice"), "I1", `{}`, models.ErrUnknownEntityKind},
		{"foreign prefix", models.KindProject, "statement:S1", `{}`, models.ErrMalformedReference},
		{"array payload", models.KindProject, "P2", `[1,2]`, ErrInvalidPayload},
		{"empty payload", models.KindProject, "P3", ``, ErrInvalidPayload},
		{"bad reference", models.KindStatement, "S1", `{"projectId":"measurement:M1"}`, models.ErrMalformedReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.kind, tt.id, json.RawMessage(tt.payload))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_UpdateUsesWatermark(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	_, err := svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"House"}`))
	require.NoError(t, err)

	require.NoError(t, store.SaveSyncContext(ctx, &models.SyncContext{ServerSeq: 42}))

	op, err := svc.Update(ctx, "project:P1", json.RawMessage(`{"name":"Barn"}`))
	require.NoError(t, err)
	assert.Equal(t, models.OpUpdate, op.Type)
	assert.Equal(t, int64(42), op.BaseSeq)

	entity, err := svc.Get(ctx, "project:P1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Barn"}`, string(entity.Payload))

	// Отметки строго растут даже при замороженных часах
	ops, err := store.EntityOperations(ctx, "project:P1")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Less(t, ops[0].ClientTimestamp, ops[1].ClientTimestamp)
}

func TestService_DeleteAndTombstone(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"House"}`))
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.KindSubdocument, "S1", json.RawMessage(`{"projectId":"P1"}`))
	require.NoError(t, err)

	op, err := svc.Delete(ctx, "project:P1")
	require.NoError(t, err)
	assert.Equal(t, models.OpDelete, op.Type)
	assert.Nil(t, op.Payload)

	entity, err := svc.Get(ctx, "project:P1")
	require.NoError(t, err)
	assert.True(t, entity.Deleted())

	// Ссылающиеся сущности не удаляются каскадно
	sub, err := svc.Get(ctx, "subdocument:S1")
	require.NoError(t, err)
	assert.False(t, sub.Deleted())

	live, err := svc.List(ctx, models.KindProject, false)
	require.NoError(t, err)
	assert.Empty(t, live)

	all, err := svc.List(ctx, models.KindProject, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Update(ctx, "project:P1", json.RawMessage(`{"name":"Back"}`))
	assert.ErrorIs(t, err, ErrEntityDeleted)
	_, err = svc.Delete(ctx, "project:P1")
	assert.ErrorIs(t, err, ErrEntityDeleted)
	_, err = svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"New"}`))
	assert.ErrorIs(t, err, ErrEntityExists)
}

func TestService_MissingEntity(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Update(ctx, "project:nope", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	_, err = svc.Delete(ctx, "project:nope")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrMalformedReference)

	_, err = svc.List(ctx, models.EntityKind("nope"), false)
	assert.ErrorIs(t, err, models.ErrUnknownEntityKind)
}

func TestService_RejectsWhatServerWouldReject(t *testing.T) {
	ctx := context.Background()
	svc, store := setupService(t)

	huge := json.RawMessage(`{"name":"` + strings.Repeat("x", validation.MaxPayloadSize) + `"}`)

	_, err := svc.Create(ctx, models.KindProject, "BIG", huge)
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, models.ErrorClassValidation, validation.ClassOf(err))

	_, err = svc.Get(ctx, "project:BIG")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)

	count, err := store.PendingCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Обновление тоже проверяется, сущность остаётся прежней
	_, err = svc.Create(ctx, models.KindProject, "P1", json.RawMessage(`{"name":"small"}`))
	require.NoError(t, err)
	_, err = svc.Update(ctx, "project:P1", huge)
	require.ErrorIs(t, err, ErrRejected)

	entity, err := svc.Get(ctx, "project:P1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"small"}`, string(entity.Payload))
}
