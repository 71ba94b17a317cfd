package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		days      int
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete acknowledged operations from the local log",
		Long: `Delete operations acknowledged by the server longer ago than the
threshold. Operations not yet pushed are never deleted. The default threshold
is sync.retention_days from the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				var maxAge time.Duration
				switch {
				case cmd.Flags().Changed("days"):
					maxAge = time.Duration(days) * 24 * time.Hour
				case cmd.Flags().Changed("older-than"):
					maxAge = olderThan
				default:
					maxAge = c.cfg.Retention()
				}
				return c.runPrune(cmd.Context(), maxAge)
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "age threshold in days")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age threshold as a duration, e.g. 36h")
	cmd.MarkFlagsMutuallyExclusive("days", "older-than")

	return cmd
}

func (c *Cli) runPrune(ctx context.Context, maxAge time.Duration) error {
	if maxAge <= 0 {
		return fmt.Errorf("retention is disabled: pass --older-than or set sync.retention_days")
	}

	removed, err := c.syncService.Prune(ctx, maxAge)
	if err != nil {
		return fmt.Errorf("failed to prune operation log: %w", err)
	}

	if c.jsonOutput() {
		return c.printJSON(map[string]int{"removed": removed})
	}
	c.io.Printf("Removed %d acknowledged operation(s) older than %s\n", removed, maxAge)
	return nil
}
