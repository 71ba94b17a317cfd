package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/models"
)

// Opener открывает хранилище и собирает сервис поверх него.
// release закрывает хранилище и вызывается после каждого обращения.
type Opener func(ctx context.Context) (svc Service, release func() error, err error)

// onDemand держит базу открытой только на время одного вызова,
// чтобы долгоживущий процесс не блокировал файл для CLI команд
type onDemand struct {
	open Opener
}

// OnDemand возвращает Service, который открывает хранилище на каждый вызов
func OnDemand(open Opener) Service {
	return &onDemand{open: open}
}

func with[T any](ctx context.Context, d *onDemand, fn func(Service) (T, error)) (res T, err error) {
	svc, release, err := d.open(ctx)
	if err != nil {
		return res, err
	}
	defer func() {
		if rerr := release(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", rerr))
		}
	}()
	return fn(svc)
}

func (d *onDemand) Cycle(ctx context.Context) (*CycleResult, error) {
	return with(ctx, d, func(s Service) (*CycleResult, error) { return s.Cycle(ctx) })
}

func (d *onDemand) Push(ctx context.Context, sc *models.SyncContext, userID string) (*PushResult, error) {
	return with(ctx, d, func(s Service) (*PushResult, error) { return s.Push(ctx, sc, userID) })
}

func (d *onDemand) Pull(ctx context.Context, sc *models.SyncContext, userID string) (*PullResult, error) {
	return with(ctx, d, func(s Service) (*PullResult, error) { return s.Pull(ctx, sc, userID) })
}

func (d *onDemand) PullLatest(ctx context.Context) (*PullResult, error) {
	return with(ctx, d, func(s Service) (*PullResult, error) { return s.PullLatest(ctx) })
}

func (d *onDemand) ResolveConflict(ctx context.Context, entityID string, resolution models.Resolution, merged json.RawMessage) error {
	_, err := with(ctx, d, func(s Service) (struct{}, error) {
		return struct{}{}, s.ResolveConflict(ctx, entityID, resolution, merged)
	})
	return err
}

func (d *onDemand) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	return with(ctx, d, func(s Service) (int, error) { return s.Prune(ctx, maxAge) })
}

func (d *onDemand) Status(ctx context.Context) (*LocalStatus, error) {
	return with(ctx, d, func(s Service) (*LocalStatus, error) { return s.Status(ctx) })
}
