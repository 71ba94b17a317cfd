package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	httpClient "github.com/iudanet/opsync/internal/client/api"
	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/clock"
	"github.com/iudanet/opsync/internal/conflict"
	"github.com/iudanet/opsync/internal/models"
)

//go:generate moq -out service_mock.go . Service

var (
	// ErrAuth сервер отклонил учётные данные; автоматический повтор бесполезен
	ErrAuth = errors.New("authentication required")

	// ErrOutOfOrder страница pull нарушает порядок serverSeq
	ErrOutOfOrder = errors.New("pull page out of order")

	// ErrInvalidResolution неизвестный способ разрешения или пустой merge
	ErrInvalidResolution = errors.New("invalid resolution")
)

// Service определяет интерфейс синхронизации журнала операций
type Service interface {
	// Cycle выполняет push, затем pull
	Cycle(ctx context.Context) (*CycleResult, error)

	// Push отправляет неподтверждённые операции пользователя
	Push(ctx context.Context, sc *models.SyncContext, userID string) (*PushResult, error)

	// Pull получает записи после watermark и применяет их к сущностям
	Pull(ctx context.Context, sc *models.SyncContext, userID string) (*PullResult, error)

	// PullLatest выполняет только pull от сохранённого watermark
	PullLatest(ctx context.Context) (*PullResult, error)

	// ResolveConflict закрывает конфликт по сущности выбранным способом
	ResolveConflict(ctx context.Context, entityID string, resolution models.Resolution, merged json.RawMessage) error

	// Prune удаляет подтверждённые операции старше maxAge
	Prune(ctx context.Context, maxAge time.Duration) (int, error)

	// Status возвращает локальное состояние синхронизации
	Status(ctx context.Context) (*LocalStatus, error)
}

// Config параметры синхронизации
type Config struct {
	UserID    string
	BatchSize int // BatchSize операций в одном push запросе
	PullLimit int // PullLimit записей в одной странице pull
}

// CycleResult итог одного цикла синхронизации
type CycleResult struct {
	Push *PushResult `json:"push,omitempty"`
	Pull *PullResult `json:"pull,omitempty"`
}

// PushResult contains push results
type PushResult struct {
	Pushed    int `json:"pushed"`    // подтверждено сервером
	Failed    int `json:"failed"`    // временный отказ, операции остались в очереди
	Discarded int `json:"discarded"` // постоянный отказ, операции удалены из журнала
	Held      int `json:"held"`      // задержаны до разрешения конфликта
}

// PullResult contains pull results
type PullResult struct {
	Applied   int `json:"applied"`    // применено к сущностям
	Skipped   int `json:"skipped"`    // устаревшие или некорректные записи
	KeptLocal int `json:"kept_local"` // локальная операция побеждает по LWW
	Echoes    int `json:"echoes"`     // собственные операции устройства
	Conflicts int `json:"conflicts"`  // создано записей о конфликте
	Deferred  int `json:"deferred"`   // сущность уже в конфликте, обновлена удалённая сторона
}

// LocalStatus локальное состояние синхронизации
type LocalStatus struct {
	DeviceID          string `json:"device_id" yaml:"device_id"`
	UserID            string `json:"user_id" yaml:"user_id"`
	Pending           int    `json:"pending" yaml:"pending"`
	Conflicts         int    `json:"conflicts" yaml:"conflicts"`
	ServerSeq         int64  `json:"server_seq" yaml:"server_seq"`
	LastSyncTimestamp int64  `json:"last_sync_timestamp" yaml:"last_sync_timestamp"`
}

// service handles synchronization between client and server
type service struct {
	api      httpClient.ClientAPI
	store    storage.Store
	resolver *conflict.Resolver
	clock    *clock.Clock
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	cfg      Config
}

// NewService creates a new sync service
func NewService(api httpClient.ClientAPI, store storage.Store, resolver *conflict.Resolver, clk *clock.Clock, cfg Config, logger *slog.Logger) Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PullLimit <= 0 {
		cfg.PullLimit = 500
	}
	if resolver == nil {
		resolver = conflict.NewResolver(nil)
	}
	return &service{
		api:      api,
		store:    store,
		resolver: resolver,
		clock:    clk,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		cfg:      cfg,
	}
}

// Cycle performs push then pull
func (s *service) Cycle(ctx context.Context) (*CycleResult, error) {
	sc, err := s.syncContext(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Starting sync cycle", "user_id", s.cfg.UserID, "server_seq", sc.ServerSeq)

	pushed, err := s.Push(ctx, sc, s.cfg.UserID)
	if err != nil {
		return &CycleResult{Push: pushed}, err
	}

	pulled, err := s.Pull(ctx, sc, s.cfg.UserID)
	if err != nil {
		return &CycleResult{Push: pushed, Pull: pulled}, err
	}

	s.logger.Info("Sync cycle completed",
		"pushed", pushed.Pushed,
		"discarded", pushed.Discarded,
		"applied", pulled.Applied,
		"conflicts", pulled.Conflicts,
		"server_seq", sc.ServerSeq)

	return &CycleResult{Push: pushed, Pull: pulled}, nil
}

// PullLatest performs pull only, used by realtime notices
func (s *service) PullLatest(ctx context.Context) (*PullResult, error) {
	sc, err := s.syncContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.Pull(ctx, sc, s.cfg.UserID)
}

// Prune удаляет подтверждённые операции старше maxAge
func (s *service) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := s.store.Prune(ctx, s.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to prune operations: %w", err)
	}
	if n > 0 {
		s.logger.Info("Pruned synced operations", "count", n)
	}
	return n, nil
}

// Status возвращает локальное состояние синхронизации
func (s *service) Status(ctx context.Context) (*LocalStatus, error) {
	sc, err := s.syncContext(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.store.PendingCount(ctx, s.cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending operations: %w", err)
	}

	conflicts, err := s.store.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	return &LocalStatus{
		DeviceID:          sc.DeviceID,
		UserID:            s.cfg.UserID,
		Pending:           pending,
		Conflicts:         len(conflicts),
		ServerSeq:         sc.ServerSeq,
		LastSyncTimestamp: sc.LastSyncTimestamp,
	}, nil
}

// syncContext загружает watermark и идентификатор устройства
func (s *service) syncContext(ctx context.Context) (*models.SyncContext, error) {
	deviceID, err := s.store.EnsureDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	sc, err := s.store.GetSyncContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync context: %w", err)
	}
	sc.DeviceID = deviceID
	return sc, nil
}

// classify оборачивает ошибку запроса: auth отделяется от временных ошибок
func classify(op string, err error) error {
	if httpClient.IsAuth(err) {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
