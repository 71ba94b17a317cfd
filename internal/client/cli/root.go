package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats допустимые форматы вывода
var ValidFormats = []string{FormatAuto, FormatText, FormatJSON}

// BuildInfo версия сборки, задается через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DB         string
	Server     string
	Format     string // "auto" | "text" | "json"
	Verbose    bool
}

// NewRootCommand creates the root command for the opsync client.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "opsync",
		Short: "Offline-first operation log client",
		Long: `opsync records every local change as an operation, applies it to the
local entity store at once and synchronizes the log with the server
whenever the network is available.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./opsync.yaml or ~/.config/opsync/opsync.yaml)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to local database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", "", "server URL (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatAuto, "output format (auto|text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewPruneCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
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
			fmt.Fprintf(out, "opsync client\n")
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Build Date: %s\n", info.BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", info.GitCommit)
		},
	}
}
