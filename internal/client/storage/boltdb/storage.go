package boltdb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/iudanet/opsync/internal/client/storage"
)

var (
	// BoltDB bucket names
	bucketOps           = []byte("ops")             // opID -> Operation
	bucketPendingIdx    = []byte("ops_pending")     // userID|ts|opID -> opID
	bucketEntityOpsIdx  = []byte("ops_entity")      // entityID|ts|opID -> opID
	bucketEntities      = []byte("entities")        // entityID -> Entity
	bucketEntityKindIdx = []byte("entity_kind_idx") // kind|entityID -> entityID
	bucketEntityRefIdx  = []byte("entity_ref_idx")  // ref|entityID -> entityID
	bucketMetadata      = []byte("metadata")
	bucketConflicts     = []byte("conflicts") // entityID -> Conflict

	allBuckets = [][]byte{
		bucketOps,
		bucketPendingIdx,
		bucketEntityOpsIdx,
		bucketEntities,
		bucketEntityKindIdx,
		bucketEntityRefIdx,
		bucketMetadata,
		bucketConflicts,
	}
)

// keySep разделитель частей составного ключа индекса
const keySep = 0x00

// Storage represents BoltDB storage implementation for client
type Storage struct {
	db *bbolt.DB
}

var _ storage.Store = (*Storage)(nil)

// DefaultLockTimeout сколько New ждёт блокировку файла, занятого другим процессом
const DefaultLockTimeout = 5 * time.Second

// New creates a new BoltDB storage instance
// dbPath is the path to the BoltDB database file
func New(ctx context.Context, dbPath string) (*Storage, error) {
	return Open(ctx, dbPath, DefaultLockTimeout)
}

// Open открывает базу, ожидая файловую блокировку не дольше lockTimeout.
// Файл держит один процесс; пока его держит другой (демон синхронизации
// посреди цикла), возвращается storage.ErrLocked.
func Open(ctx context.Context, dbPath string, lockTimeout time.Duration) (*Storage, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		if errors.Is(err, berrors.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", storage.ErrLocked, dbPath)
		}
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	s := &Storage{db: db}

	// Инициализируем buckets
	if err := s.initBuckets(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// initBuckets создает необходимые buckets если они не существуют
func (s *Storage) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

// bucket возвращает bucket или ошибку, если его нет
func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}

// compositeKey собирает ключ индекса: parts разделены keySep
func compositeKey(parts ...[]byte) []byte {
	size := len(parts) - 1
	for _, p := range parts {
		size += len(p)
	}
	key := make([]byte, 0, size)
	for i, p := range parts {
		if i > 0 {
			key = append(key, keySep)
		}
		key = append(key, p...)
	}
	return key
}

// prefixKey префикс для сканирования индекса по первой части ключа
func prefixKey(first string) []byte {
	return append([]byte(first), keySep)
}

// int64Key big-endian представление, сортируется по возрастанию для неотрицательных значений
func int64Key(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
