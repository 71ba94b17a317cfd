// Package server assembles the operation-log HTTP service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/server/archive"
	"github.com/iudanet/opsync/internal/server/handlers"
	"github.com/iudanet/opsync/internal/server/middleware"
	"github.com/iudanet/opsync/internal/server/realtime"
	"github.com/iudanet/opsync/internal/server/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// Server HTTP сервис журнала операций
type Server struct {
	logger   *slog.Logger
	cfg      *config.Server
	store    *sqlite.Storage
	hub      *realtime.Hub
	limiter  *middleware.RateLimiter
	archiver *archive.Archiver
	handler  http.Handler
}

// New открывает хранилище и собирает маршруты
func New(ctx context.Context, cfg *config.Server, logger *slog.Logger, version string) (*Server, error) {
	if err := cfg.RequireSecret(); err != nil {
		return nil, err
	}

	store, err := sqlite.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	s := &Server{
		logger: logger,
		cfg:    cfg,
		store:  store,
	}

	if cfg.Realtime.Enabled {
		s.hub = realtime.NewHub(logger, realtime.DefaultConfig())
	}
	if cfg.RateLimit.Requests > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger)
	}
	if cfg.Archive.Enabled() {
		s.archiver, err = NewArchiver(ctx, cfg.Archive, store, logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	s.handler = s.routes(version)

	return s, nil
}

// NewArchiver создает выгрузку журнала в S3 по настройкам сервера
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig, store *sqlite.Storage, logger *slog.Logger) (*archive.Archiver, error) {
	objects, err := archive.NewS3Store(ctx, archive.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		UsePathStyle:    cfg.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}

	return archive.New(store, objects, archive.Config{
		Prefix:    cfg.Prefix,
		BatchSize: cfg.BatchSize,
	}, logger), nil
}

func (s *Server) routes(version string) http.Handler {
	jwtCfg := handlers.JWTConfig{
		Secret:         []byte(s.cfg.JWT.Secret),
		Issuer:         s.cfg.JWT.Issuer,
		AccessTokenTTL: s.cfg.JWT.TTL,
	}

	// hub передаётся только если включён, иначе интерфейсы останутся nil
	var (
		notifier handlers.Notifier
		streamer handlers.Streamer
	)
	if s.hub != nil {
		notifier = s.hub
		streamer = s.hub
	}

	syncHandler := handlers.NewSyncHandler(s.logger, s.store, notifier, streamer, handlers.SyncConfig{
		MaxRequestBytes:  s.cfg.Sync.MaxRequestBytes,
		MaxBatchSize:     s.cfg.Sync.MaxBatchSize,
		DefaultPullLimit: s.cfg.Sync.DefaultPullLimit,
		MaxPullLimit:     s.cfg.Sync.MaxPullLimit,
	})
	healthHandler := handlers.NewHealthHandler(s.logger, s.store, version)

	auth := middleware.AuthMiddleware(s.logger, jwtCfg)
	protected := func(h http.HandlerFunc) http.Handler {
		var next http.Handler = h
		if s.limiter != nil {
			next = s.limiter.Middleware(next)
		}
		return auth(next)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/sync/push", protected(syncHandler.Push))
	mux.Handle("GET /api/v1/sync/pull", protected(syncHandler.Pull))
	mux.Handle("GET /api/v1/sync/status", protected(syncHandler.Status))
	mux.Handle("GET /api/v1/sync/ws", protected(syncHandler.Stream))
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	var handler http.Handler = mux
	handler = middleware.LoggingWithSkip(s.logger, []string{"/api/v1/health"})(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	return handler
}

// Handler возвращает корневой http.Handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run обслуживает запросы до отмены контекста, затем корректно завершает работу
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает запросы на переданном listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.archiver != nil && s.cfg.Archive.Interval > 0 {
		g.Go(func() error {
			return s.archiver.Run(gctx, s.cfg.Archive.Interval)
		})
	}

	return g.Wait()
}

// Close освобождает ресурсы сервера
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.store.Close()
}
