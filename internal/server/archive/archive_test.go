package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage/sqlite"
)

// memStore хранит объекты в памяти и может отказывать первые failPuts раз
type memStore struct {
	objects  map[string][]byte
	failPuts int
	puts     int
	mu       sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) PutObject(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPuts > 0 {
		m.failPuts--
		return errors.New("connection reset")
	}
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *memStore) GetObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return body, nil
}

func setup(t *testing.T, objects ObjectStore, batch int) (*Archiver, *sqlite.Storage) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a := New(store, objects, Config{Prefix: "test/", BatchSize: batch, Attempts: 3},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
	}
	return a, store
}

func seed(t *testing.T, store *sqlite.Storage, userID string, ids ...string) {
	t.Helper()
	ops := make([]*models.Operation, 0, len(ids))
	for _, id := range ids {
		ops = append(ops, &models.Operation{
			ID:              id,
			DeviceID:        "device-a",
			UserID:          userID,
			Type:            models.OpUpdate,
			EntityKind:      models.KindProject,
			EntityID:        "project:P1",
			Payload:         json.RawMessage(`{"name":"` + id + `"}`),
			ClientTimestamp: 1700000000000,
		})
	}
	_, err := store.AcceptOperations(context.Background(), userID, ops, time.Now())
	require.NoError(t, err)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "p/ops-00000000000000000001-00000000000000000042.jsonl.sz", ObjectKey("p/", 1, 42))
}

func TestArchiver_RunOnce(t *testing.T) {
	ctx := context.Background()
	objects := newMemStore()
	a, store := setup(t, objects, 2)

	rec, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec, "nothing to archive yet")

	seed(t, store, "user-1", "o1", "o2")
	seed(t, store, "user-2", "o3")

	recs, err := a.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, int64(1), recs[0].FromSeq)
	assert.Equal(t, int64(2), recs[0].ToSeq)
	assert.Equal(t, 2, recs[0].Count)
	assert.Equal(t, int64(3), recs[1].FromSeq)
	assert.Equal(t, int64(3), recs[1].ToSeq)

	cursor, err := store.ArchiveCursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cursor)

	ops, err := a.Fetch(ctx, recs[0].ObjectKey)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "o1", ops[0].ID)
	assert.Equal(t, "user-1", ops[0].UserID)
	assert.Equal(t, int64(2), ops[1].ServerSeq)

	ops, err = a.Fetch(ctx, recs[1].ObjectKey)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "user-2", ops[0].UserID)

	// повторный запуск ничего не выгружает
	rec, err = a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestArchiver_RetriesUpload(t *testing.T) {
	ctx := context.Background()
	objects := newMemStore()
	objects.failPuts = 2
	a, store := setup(t, objects, 10)

	seed(t, store, "user-1", "o1")

	rec, err := a.RunOnce(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 3, objects.puts)
}

func TestArchiver_UploadFailureKeepsCursor(t *testing.T) {
	ctx := context.Background()
	objects := newMemStore()
	objects.failPuts = 10
	a, store := setup(t, objects, 10)

	seed(t, store, "user-1", "o1")

	_, err := a.RunOnce(ctx)
	require.Error(t, err)

	cursor, err := store.ArchiveCursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, cursor)

	archives, err := store.ListArchives(ctx)
	require.NoError(t, err)
	assert.Empty(t, archives)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("not snappy"))
	assert.Error(t, err)

	_, err = Decode(snappy.Encode(nil, []byte("{broken\n")))
	assert.Error(t, err)
}
