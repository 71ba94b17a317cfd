// Package scheduler decides when the sync engine runs: on reconnect, on a
// timer, on user request and after failures with exponential backoff.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/opsync/internal/client/sync"
)

// Reason причина запуска цикла
type Reason string

const (
	ReasonStartup  Reason = "startup"
	ReasonOnline   Reason = "online"   // сеть восстановлена
	ReasonInterval Reason = "interval" // периодический запуск
	ReasonFocus    Reason = "focus"    // приложение получило фокус
	ReasonManual   Reason = "manual"   // запрос пользователя
	ReasonRetry    Reason = "retry"    // повтор после ошибки
	ReasonRealtime Reason = "realtime" // уведомление о новых записях, только pull
)

// State состояние индикатора синхронизации
type State string

const (
	StateIdle         State = "idle"
	StateSyncing      State = "syncing"
	StatePending      State = "pending" // есть неотправленные операции
	StateError        State = "error"
	StateOffline      State = "offline"
	StateAuthRequired State = "auth_required"
)

// Status снимок состояния планировщика
type Status struct {
	LastSuccess         time.Time `json:"last_success,omitzero"`
	NextRetry           time.Time `json:"next_retry,omitzero"`
	State               State     `json:"state"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Online              bool      `json:"online"`
}

// Config параметры планировщика
type Config struct {
	Interval      time.Duration // Interval периодический цикл, пока есть сеть
	RetryBase     time.Duration // RetryBase первая задержка повтора
	RetryMax      time.Duration // RetryMax предел задержки повтора
	Retention     time.Duration // Retention срок хранения подтверждённых операций; 0 отключает prune
	PruneInterval time.Duration
}

type request struct {
	reason   Reason
	pullOnly bool
}

// Scheduler владеет единственным таймером повтора и гарантирует,
// что одновременно выполняется не больше одного цикла.
type Scheduler struct {
	svc        sync.Service
	logger     *slog.Logger
	newBackoff func() retry.Backoff
	now        func() time.Time
	wake       chan struct{}
	pending    *request
	retryTimer *time.Timer
	backoff    retry.Backoff
	status     Status
	cfg        Config
	mu         gosync.Mutex
	running    bool
	online     bool
}

// New создает планировщик. До вызова SetOnline(true) считается, что сети нет.
func New(svc sync.Service, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = cfg.RetryBase
	}

	s := &Scheduler{
		svc:    svc,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		wake:   make(chan struct{}, 1),
		status: Status{State: StateOffline},
	}
	s.newBackoff = func() retry.Backoff {
		return retry.WithJitterPercent(20, retry.WithCappedDuration(cfg.RetryMax, retry.NewExponential(cfg.RetryBase)))
	}
	s.backoff = s.newBackoff()
	return s
}

// Status возвращает снимок состояния
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetOnline сообщает о смене состояния сети.
// Переход в online запускает цикл, переход в offline отменяет повтор.
func (s *Scheduler) SetOnline(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	s.status.Online = online
	if !online {
		s.cancelRetryLocked()
		if !s.running {
			s.status.State = StateOffline
		}
		s.mu.Unlock()
		s.logger.Info("Connection lost, sync paused")
		return
	}
	if s.status.State == StateOffline {
		s.status.State = StateIdle
	}
	s.mu.Unlock()

	s.logger.Info("Connection restored")
	s.Trigger(ReasonOnline)
}

// Trigger запрашивает полный цикл (push, затем pull).
// Возвращает false, если запрос отброшен: нет сети, нужна авторизация
// или цикл уже выполняется.
func (s *Scheduler) Trigger(reason Reason) bool {
	return s.enqueue(request{reason: reason})
}

// TriggerPull запрашивает только pull
func (s *Scheduler) TriggerPull() bool {
	return s.enqueue(request{reason: ReasonRealtime, pullOnly: true})
}

func (s *Scheduler) enqueue(req request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.online:
		s.logger.Debug("Trigger dropped: offline", "reason", req.reason)
		return false
	case s.status.State == StateAuthRequired && req.reason != ReasonManual:
		s.logger.Debug("Trigger dropped: auth required", "reason", req.reason)
		return false
	case s.running:
		s.logger.Debug("Trigger dropped: cycle in progress", "reason", req.reason)
		return false
	}

	if s.pending != nil {
		// Уже ожидающий запрос поглощает новый; полный цикл важнее pull
		s.pending.pullOnly = s.pending.pullOnly && req.pullOnly
		return true
	}
	s.pending = &req

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Run обрабатывает запросы до отмены ctx. Циклы выполняются в этой горутине.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick, prune <-chan time.Time
	if s.cfg.Interval > 0 {
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		tick = t.C
	}
	if s.cfg.Retention > 0 && s.cfg.PruneInterval > 0 {
		t := time.NewTicker(s.cfg.PruneInterval)
		defer t.Stop()
		prune = t.C
	}
	defer s.cancelRetry()

	s.Trigger(ReasonStartup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			s.Trigger(ReasonInterval)
		case <-prune:
			if _, err := s.svc.Prune(ctx, s.cfg.Retention); err != nil {
				s.logger.Error("Failed to prune operations", "error", err)
			}
		case <-s.wake:
			if req, ok := s.take(); ok {
				s.runCycle(ctx, req)
			}
		}
	}
}

func (s *Scheduler) take() (request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || !s.online {
		s.pending = nil
		return request{}, false
	}
	req := *s.pending
	s.pending = nil
	s.running = true
	s.status.State = StateSyncing
	return req, true
}

func (s *Scheduler) runCycle(ctx context.Context, req request) {
	s.logger.Debug("Sync cycle started", "reason", req.reason, "pull_only", req.pullOnly)

	var err error
	if req.pullOnly {
		_, err = s.svc.PullLatest(ctx)
	} else {
		_, err = s.svc.Cycle(ctx)
	}

	pending := 0
	if err == nil {
		if st, serr := s.svc.Status(ctx); serr == nil {
			pending = st.Pending
		}
	}

	s.finish(ctx, err, pending)
}

func (s *Scheduler) finish(ctx context.Context, err error, pending int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false

	switch {
	case err == nil:
		s.status.LastSuccess = s.now()
		s.status.LastError = ""
		s.status.ConsecutiveFailures = 0
		s.backoff = s.newBackoff()
		s.cancelRetryLocked()
		s.status.State = StateIdle
		if pending > 0 {
			s.status.State = StatePending
		}

	case ctx.Err() != nil:
		// Остановка процесса, не ошибка синхронизации

	case errors.Is(err, sync.ErrAuth):
		s.status.State = StateAuthRequired
		s.status.LastError = err.Error()
		s.cancelRetryLocked()
		s.logger.Warn("Sync requires authentication", "error", err)

	default:
		s.status.ConsecutiveFailures++
		s.status.LastError = err.Error()
		s.status.State = StateError
		delay, _ := s.backoff.Next()
		s.scheduleRetryLocked(delay)
		s.logger.Warn("Sync cycle failed",
			"error", err,
			"failures", s.status.ConsecutiveFailures,
			"retry_in", delay)
	}

	if !s.online {
		s.status.State = StateOffline
	}
}

// scheduleRetryLocked заменяет таймер повтора; таймер всегда один
func (s *Scheduler) scheduleRetryLocked(delay time.Duration) {
	if !s.online {
		return
	}
	s.cancelRetryLocked()
	s.status.NextRetry = s.now().Add(delay)
	s.retryTimer = time.AfterFunc(delay, func() {
		s.Trigger(ReasonRetry)
	})
}

func (s *Scheduler) cancelRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRetryLocked()
}

func (s *Scheduler) cancelRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.status.NextRetry = time.Time{}
}
