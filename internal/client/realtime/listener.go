// Package realtime keeps a WebSocket subscription to the server and turns
// notices about new records into pull requests.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/opsync/pkg/api"
)

// Endpoint источник адреса и заголовков подключения
type Endpoint interface {
	StreamEndpoint() (string, http.Header, error)
}

// PullTrigger получатель запросов на pull
type PullTrigger interface {
	TriggerPull() bool
}

// Config параметры переподключения
type Config struct {
	RetryBase time.Duration
	RetryMax  time.Duration
}

// DefaultConfig returns default reconnect settings
func DefaultConfig() Config {
	return Config{
		RetryBase: time.Second,
		RetryMax:  time.Minute,
	}
}

// Listener подписка на уведомления о новых записях пользователя
type Listener struct {
	endpoint   Endpoint
	target     PullTrigger
	logger     *slog.Logger
	dialer     *websocket.Dialer
	newBackoff func() retry.Backoff
	deviceID   string
}

// NewListener создает listener; уведомления от deviceID игнорируются
func NewListener(endpoint Endpoint, target PullTrigger, deviceID string, cfg Config, logger *slog.Logger) *Listener {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultConfig().RetryBase
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = cfg.RetryBase
	}
	return &Listener{
		endpoint: endpoint,
		target:   target,
		logger:   logger,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		newBackoff: func() retry.Backoff {
			return retry.WithJitterPercent(20, retry.WithCappedDuration(cfg.RetryMax, retry.NewExponential(cfg.RetryBase)))
		},
		deviceID: deviceID,
	}
}

// Run держит подключение до отмены ctx, переподключаясь с backoff
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.newBackoff()

	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = l.newBackoff()
		}

		delay, _ := backoff.Next()
		l.logger.Debug("Realtime channel closed, reconnecting", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// listen обслуживает одно подключение; connected сообщает, удалось ли подключиться
func (l *Listener) listen(ctx context.Context) (bool, error) {
	url, header, err := l.endpoint.StreamEndpoint()
	if err != nil {
		return false, err
	}

	conn, resp, err := l.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return false, fmt.Errorf("dial %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()

	l.logger.Info("Realtime channel connected")

	// Закрытие соединения прерывает блокирующее чтение
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// Уведомления могли быть пропущены, пока подключения не было
	l.target.TriggerPull()

	for {
		var notice api.Notice
		if err := conn.ReadJSON(&notice); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, context.Canceled) {
				return true, nil
			}
			return true, err
		}
		l.handle(notice)
	}
}

func (l *Listener) handle(notice api.Notice) {
	if notice.Type != api.NoticeTypeOps {
		l.logger.Debug("Ignoring realtime notice", "type", notice.Type)
		return
	}
	if notice.DeviceID == l.deviceID {
		return
	}
	l.logger.Debug("New records on server", "server_seq", notice.ServerSeq, "device_id", notice.DeviceID)
	l.target.TriggerPull()
}
