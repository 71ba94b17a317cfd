package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/iudanet/opsync/internal/client/scheduler"
	"github.com/iudanet/opsync/internal/config"
)

// command действие, которое демону поручает внешний сигнал
type command int

const (
	commandSync   command = iota // внеочередной цикл по запросу пользователя
	commandResume                // процесс продолжил работу после остановки
	commandReload                // перечитать токен доступа
)

type triggerer interface {
	Trigger(reason scheduler.Reason) bool
}

type tokenSetter interface {
	SetToken(token string)
}

// control переводит сигналы процесса в запросы планировщику
type control struct {
	target triggerer
	tokens tokenSetter
	reload func() (*config.Client, error)
	logger *slog.Logger
	userID string
}

// notifyControl подписывается на управляющие сигналы платформы
func notifyControl() chan os.Signal {
	sigs := make(chan os.Signal, 1)
	if len(controlSignals) == 0 {
		return sigs
	}
	list := make([]os.Signal, 0, len(controlSignals))
	for sig := range controlSignals {
		list = append(list, sig)
	}
	signal.Notify(sigs, list...)
	return sigs
}

// Run обрабатывает сигналы до отмены ctx
func (c *control) Run(ctx context.Context, sigs <-chan os.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			if cmd, ok := controlSignals[sig]; ok {
				c.handle(cmd)
			}
		}
	}
}

func (c *control) handle(cmd command) {
	switch cmd {
	case commandSync:
		accepted := c.target.Trigger(scheduler.ReasonManual)
		c.logger.Info("Manual sync requested", "accepted", accepted)
	case commandResume:
		c.target.Trigger(scheduler.ReasonFocus)
	case commandReload:
		c.reloadToken()
	}
}

// reloadToken подхватывает новый токен без перезапуска демона.
// Токен другого пользователя отклоняется: журнал привязан к user_id.
func (c *control) reloadToken() {
	cfg, err := c.reload()
	if err != nil {
		c.logger.Error("Failed to reload config", "error", err)
		return
	}

	userID, err := resolveUserID(cfg)
	if err != nil {
		c.logger.Error("Failed to reload token", "error", err)
		return
	}
	if userID != c.userID {
		c.logger.Error("Reloaded token belongs to another user, ignoring",
			"user_id", c.userID,
			"token_user_id", userID)
		return
	}

	c.tokens.SetToken(cfg.Server.Token)
	c.logger.Info("Access token reloaded", "user_id", userID)

	// Ручной запрос проходит и из состояния auth_required
	c.target.Trigger(scheduler.ReasonManual)
}
