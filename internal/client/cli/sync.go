package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/client/sync"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var pullOnly bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization cycle (push, then pull)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runSync(cmd.Context(), pullOnly)
			})
		},
	}

	cmd.Flags().BoolVar(&pullOnly, "pull-only", false, "only pull records after the local watermark")

	return cmd
}

func (c *Cli) runSync(ctx context.Context, pullOnly bool) error {
	result := &sync.CycleResult{}
	var err error

	if pullOnly {
		result.Pull, err = c.syncService.PullLatest(ctx)
	} else {
		result, err = c.syncService.Cycle(ctx)
	}
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	if c.jsonOutput() {
		return c.printJSON(result)
	}

	c.io.Println("=== Synchronization ===")
	c.io.Println()

	if p := result.Push; p != nil {
		c.io.Printf("Pushed to server:   %d operation(s)\n", p.Pushed)
		if p.Failed > 0 {
			c.io.Printf("Retry later:        %d operation(s)\n", p.Failed)
		}
		if p.Discarded > 0 {
			c.io.Printf("Rejected:           %d operation(s) removed from the log\n", p.Discarded)
		}
		if p.Held > 0 {
			c.io.Printf("Held by conflicts:  %d operation(s)\n", p.Held)
		}
	}

	if p := result.Pull; p != nil {
		c.io.Printf("Applied locally:    %d record(s)\n", p.Applied)
		c.io.Printf("Own echoes:         %d record(s)\n", p.Echoes)
		if p.KeptLocal > 0 {
			c.io.Printf("Kept local (LWW):   %d record(s)\n", p.KeptLocal)
		}
		if p.Skipped > 0 {
			c.io.Printf("Skipped:            %d record(s)\n", p.Skipped)
		}
		if n := p.Conflicts + p.Deferred; n > 0 {
			c.io.Printf("Conflicts:          %d new, %d updated\n", p.Conflicts, p.Deferred)
			c.io.Println()
			c.io.Println("Run 'opsync conflicts list' to review them.")
		}
	}

	return nil
}
