package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// HealthChecker проверка доступности сервера
type HealthChecker interface {
	Health(ctx context.Context) error
}

// OnlineSetter получатель сигнала о состоянии сети
type OnlineSetter interface {
	SetOnline(online bool)
}

// Prober опрашивает /health и сообщает о смене состояния сети
type Prober struct {
	api      HealthChecker
	target   OnlineSetter
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewProber создает prober; timeout ограничивает один запрос
func NewProber(api HealthChecker, target OnlineSetter, interval, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Prober{
		api:      api,
		target:   target,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Run проверяет сервер сразу и затем с интервалом до отмены ctx
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Probe(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Probe выполняет одну проверку
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.api.Health(ctx)
	if err != nil {
		p.logger.Debug("Health check failed", "error", err)
	}
	online := err == nil
	p.target.SetOnline(online)
	return online
}
