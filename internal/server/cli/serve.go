package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions, info BuildInfo) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			logger, err := config.NewLogger(cfg.Log.Level)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := server.New(ctx, cfg, logger, info.Version)
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			defer func() {
				if cerr := srv.Close(); cerr != nil {
					logger.Error("Failed to close server", "error", cerr)
				}
			}()

			logger.Info("Starting opsync server",
				"version", info.Version,
				"addr", cfg.Addr,
				"db", cfg.DB,
				"realtime", cfg.Realtime.Enabled,
				"archive", cfg.Archive.Enabled(),
			)

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
