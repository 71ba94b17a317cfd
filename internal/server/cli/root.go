// Package cli implements the opsync-server command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/config"
)

// BuildInfo версия сборки, задается через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the opsync server.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "opsync-server",
		Short:         "Operation log server",
		Long:          "opsync-server accepts operation batches, assigns per-user serverSeq and serves them to other devices.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./opsync-server.yaml or ~/.config/opsync/opsync-server.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts, info))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewArchiveCommand(opts))
	cmd.AddCommand(NewVersionCommand(info))

	return cmd
}

// NewVersionCommand печатает информацию о сборке
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "opsync server\n")
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Build Date: %s\n", info.BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", info.GitCommit)
		},
	}
}

func loadConfig(opts *RootOptions) (*config.Server, error) {
	cfg, err := config.LoadServer(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
