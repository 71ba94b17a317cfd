// Package archive exports the server operation log to object storage as
// snappy-compressed JSON Lines.
package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang/snappy"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/opsync/internal/server/storage"
	"github.com/iudanet/opsync/internal/wire"
	"github.com/iudanet/opsync/pkg/api"
)

// ObjectStore хранилище объектов, куда выгружаются архивы
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Config параметры выгрузки
type Config struct {
	Prefix    string
	BatchSize int
	Attempts  uint64 // Attempts количество попыток записи одного объекта
}

// Archiver выгружает записи журнала выше курсора архива
type Archiver struct {
	store   storage.ArchiveStorage
	objects ObjectStore
	logger  *slog.Logger
	now     func() time.Time
	backoff func() retry.Backoff
	cfg     Config
}

// New создает Archiver
func New(store storage.ArchiveStorage, objects ObjectStore, cfg Config, logger *slog.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10000
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}

	attempts := cfg.Attempts
	return &Archiver{
		store:   store,
		objects: objects,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(attempts-1, retry.NewExponential(200*time.Millisecond))
		},
	}
}

// ObjectKey возвращает имя объекта для диапазона номеров
func ObjectKey(prefix string, from, to int64) string {
	return fmt.Sprintf("%sops-%020d-%020d.jsonl.sz", prefix, from, to)
}

// RunOnce выгружает один батч записей. Возвращает nil, если новых записей нет.
func (a *Archiver) RunOnce(ctx context.Context) (*storage.Archive, error) {
	cursor, err := a.store.ArchiveCursor(ctx)
	if err != nil {
		return nil, err
	}

	ops, err := a.store.OperationsAfter(ctx, cursor, a.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		if err := enc.Encode(wire.ToServerOperation(op)); err != nil {
			return nil, fmt.Errorf("failed to encode operation %s: %w", op.ID, err)
		}
	}

	rec := &storage.Archive{
		ObjectKey: ObjectKey(a.cfg.Prefix, ops[0].ServerSeq, ops[len(ops)-1].ServerSeq),
		FromSeq:   ops[0].ServerSeq,
		ToSeq:     ops[len(ops)-1].ServerSeq,
		Count:     len(ops),
		CreatedAt: a.now(),
	}

	body := snappy.Encode(nil, buf.Bytes())
	err = retry.Do(ctx, a.backoff(), func(ctx context.Context) error {
		if err := a.objects.PutObject(ctx, rec.ObjectKey, body); err != nil {
			a.logger.Warn("Archive upload failed", "key", rec.ObjectKey, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", rec.ObjectKey, err)
	}

	// Курсор двигается только после успешной записи объекта
	if err := a.store.RecordArchive(ctx, rec); err != nil {
		return nil, err
	}

	a.logger.Info("Operation log archived",
		"key", rec.ObjectKey,
		"from_seq", rec.FromSeq,
		"to_seq", rec.ToSeq,
		"count", rec.Count,
		"bytes", len(body))

	return rec, nil
}

// Drain выгружает батчи, пока есть новые записи
func (a *Archiver) Drain(ctx context.Context) ([]*storage.Archive, error) {
	var done []*storage.Archive
	for {
		rec, err := a.RunOnce(ctx)
		if err != nil {
			return done, err
		}
		if rec == nil {
			return done, nil
		}
		done = append(done, rec)
	}
}

// Run периодически выгружает журнал до отмены контекста
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("Archiver started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Archiver stopped")
			return nil
		case <-ticker.C:
			if _, err := a.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Archive run failed", "error", err)
			}
		}
	}
}

// Decode распаковывает объект архива в записи протокола
func Decode(body []byte) ([]api.ServerOperation, error) {
	raw, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress archive: %w", err)
	}

	var ops []api.ServerOperation
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var op api.ServerOperation
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("failed to decode archive line: %w", err)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	return ops, nil
}

// Fetch читает и распаковывает объект архива
func (a *Archiver) Fetch(ctx context.Context, key string) ([]api.ServerOperation, error) {
	body, err := a.objects.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decode(body)
}
