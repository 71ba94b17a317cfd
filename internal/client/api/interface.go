package api

import (
	"context"

	"github.com/iudanet/opsync/pkg/api"
)

//go:generate moq -out client_api_mock.go . ClientAPI

// ClientAPI протокол синхронизации с сервером
type ClientAPI interface {
	// Push отправляет батч операций
	Push(ctx context.Context, req api.PushRequest) (*api.PushData, error)

	// Pull получает записи с serverSeq > since
	Pull(ctx context.Context, since int64, deviceID string, limit int) (*api.PullData, error)

	// Status возвращает диагностическую сводку
	Status(ctx context.Context, deviceID string) (*api.StatusResponse, error)

	// Health проверяет доступность сервера
	Health(ctx context.Context) error
}

var _ ClientAPI = (*Client)(nil)
