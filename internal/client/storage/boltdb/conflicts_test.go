package boltdb

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

func TestStorage_Conflicts(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	c := &models.Conflict{
		EntityKind:    models.KindStatement,
		EntityID:      "statement:S1",
		State:         models.ConflictDetected,
		LocalPayload:  json.RawMessage(`{"total":10}`),
		RemotePayload: json.RawMessage(`{"total":20}`),
		RemoteSeq:     7,
		DetectedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.SaveConflict(ctx, c))

	got, err := store.GetConflict(ctx, "statement:S1")
	require.NoError(t, err)
	assert.Equal(t, models.ConflictDetected, got.State)
	assert.JSONEq(t, `{"total":20}`, string(got.RemotePayload))

	// Повторное сохранение заменяет запись, а не дублирует
	c.RemoteSeq = 9
	c.State = models.ConflictResolving
	require.NoError(t, store.SaveConflict(ctx, c))

	list, err := store.ListConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].RemoteSeq)

	// Закрытые записи не выдаются
	require.NoError(t, store.SaveConflict(ctx, &models.Conflict{EntityID: "project:P1", State: models.ConflictNone}))
	list, err = store.ListConflicts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeleteConflict(ctx, "statement:S1"))
	require.NoError(t, store.DeleteConflict(ctx, "statement:S1"))

	_, err = store.GetConflict(ctx, "statement:S1")
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}
