package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/opsync/internal/client/realtime"
	"github.com/iudanet/opsync/internal/client/scheduler"
	"github.com/iudanet/opsync/internal/client/sync"
	"github.com/iudanet/opsync/internal/config"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the log synchronized in the background",
		Long: `Run the sync daemon until interrupted. It probes the server to track
connectivity, runs a cycle on startup, on reconnect and on every interval,
retries failures with exponential backoff and pulls as soon as the realtime
channel announces new records.

The database is opened only while a cycle runs, so other opsync commands
can use it in between. On Unix SIGUSR1 requests an immediate cycle and
SIGHUP rereads server.token from the config, which also recovers from
auth_required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(rootOpts)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), e, func() (*config.Client, error) {
				return loadConfig(rootOpts)
			})
		},
	}
}

func runDaemon(ctx context.Context, e *env, reload func() (*config.Client, error)) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deviceID, err := e.deviceID(ctx)
	if err != nil {
		return err
	}

	cfg := e.cfg
	sched := scheduler.New(sync.OnDemand(e.openSync), scheduler.Config{
		Interval:      cfg.Sync.Interval,
		RetryBase:     cfg.Sync.RetryBase,
		RetryMax:      cfg.Sync.RetryMax,
		Retention:     cfg.Retention(),
		PruneInterval: cfg.Sync.PruneInterval,
	}, e.logger)
	prober := scheduler.NewProber(e.apiClient, sched, cfg.Probe.Interval, cfg.Sync.RequestTimeout, e.logger)
	ctl := &control{
		target: sched,
		tokens: e.apiClient,
		reload: reload,
		logger: e.logger,
		userID: e.userID,
	}

	sigs := notifyControl()
	defer signal.Stop(sigs)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return prober.Run(gctx)
	})
	g.Go(func() error {
		return ctl.Run(gctx, sigs)
	})
	if cfg.Realtime.Enabled {
		listener := realtime.NewListener(e.apiClient, sched, deviceID, realtime.Config{
			RetryBase: cfg.Sync.RetryBase,
			RetryMax:  cfg.Sync.RetryMax,
		}, e.logger)
		g.Go(func() error {
			return listener.Run(gctx)
		})
	}

	e.logger.Info("Sync daemon started",
		"device_id", deviceID,
		"user_id", e.userID,
		"server", cfg.Server.URL,
		"interval", cfg.Sync.Interval,
		"realtime", cfg.Realtime.Enabled,
	)

	err = g.Wait()

	st := sched.Status()
	e.logger.Info("Sync daemon stopped",
		"state", st.State,
		"last_success", st.LastSuccess,
		"consecutive_failures", st.ConsecutiveFailures,
	)
	return err
}

// deviceID открывает базу ненадолго, чтобы создать или прочитать device_id
func (e *env) deviceID(ctx context.Context) (id string, err error) {
	s, err := e.open(ctx)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close database: %w", cerr))
		}
	}()

	id, err = s.store.EnsureDeviceID(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get device id: %w", err)
	}
	return id, nil
}
