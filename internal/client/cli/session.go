package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	httpClient "github.com/iudanet/opsync/internal/client/api"
	"github.com/iudanet/opsync/internal/client/data"
	"github.com/iudanet/opsync/internal/client/iocli"
	"github.com/iudanet/opsync/internal/client/storage/boltdb"
	"github.com/iudanet/opsync/internal/client/sync"
	"github.com/iudanet/opsync/internal/clock"
	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/conflict"
)

// env зависимости команды, которым не нужна база
type env struct {
	cfg       *config.Client
	logger    *slog.Logger
	apiClient *httpClient.Client
	resolver  *conflict.Resolver
	clk       *clock.Clock
	userID    string
}

// session env с открытым хранилищем
type session struct {
	*env
	store       *boltdb.Storage
	dataService data.Service
	syncService sync.Service
}

// loadConfig читает конфигурацию и применяет глобальные флаги
func loadConfig(opts *RootOptions) (*config.Client, error) {
	cfg, err := config.LoadClient(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Server != "" {
		cfg.Server.URL = opts.Server
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func newEnv(opts *RootOptions) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	userID, err := resolveUserID(cfg)
	if err != nil {
		return nil, err
	}

	policy, err := conflict.NewPolicy(cfg.Conflicts.CriticalFields)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:       cfg,
		logger:    logger,
		apiClient: httpClient.NewClient(cfg.Server.URL, cfg.Server.Token, cfg.Sync.RequestTimeout),
		resolver:  conflict.NewResolver(policy),
		// один clock на сервис данных и синхронизацию: pull продвигает локальное время
		clk:    clock.New(),
		userID: userID,
	}, nil
}

// open открывает базу и собирает сервисы поверх неё
func (e *env) open(ctx context.Context) (*session, error) {
	store, err := boltdb.Open(ctx, e.cfg.DB, e.cfg.LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &session{
		env:         e,
		store:       store,
		dataService: data.NewService(store, e.clk, e.userID),
		syncService: sync.NewService(e.apiClient, store, e.resolver, e.clk, sync.Config{
			UserID:    e.userID,
			BatchSize: e.cfg.Sync.BatchSize,
			PullLimit: e.cfg.Sync.PullLimit,
		}, e.logger),
	}, nil
}

// openSync открывает базу на один вызов демона
func (e *env) openSync(ctx context.Context) (sync.Service, func() error, error) {
	s, err := e.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.syncService, s.Close, nil
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	e, err := newEnv(opts)
	if err != nil {
		return nil, err
	}
	return e.open(ctx)
}

func (s *session) Close() error {
	return s.store.Close()
}

// withSession открывает хранилище на время выполнения команды
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(s *session) error) (err error) {
	s, err := openSession(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", cerr))
		}
	}()
	return fn(s)
}

// withCli как withSession, но отдает готовый Cli
func withCli(cmd *cobra.Command, opts *RootOptions, fn func(c *Cli) error) error {
	return withSession(cmd, opts, func(s *session) error {
		io := iocli.NewStdio(cmd.InOrStdin(), cmd.OutOrStdout())
		return fn(New(io, s.apiClient, s.dataService, s.syncService, s.store, s.cfg, opts.Format))
	})
}

// resolveUserID берет user_id из конфигурации, иначе из claim токена доступа.
// Подпись не проверяется: это делает сервер.
func resolveUserID(cfg *config.Client) (string, error) {
	if cfg.UserID != "" {
		return cfg.UserID, nil
	}
	if cfg.Server.Token == "" {
		return "", fmt.Errorf("user id is unknown: set user_id or server.token in config")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(cfg.Server.Token, claims); err != nil {
		return "", fmt.Errorf("failed to parse server.token: %w", err)
	}
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("server.token has no user_id claim")
}
