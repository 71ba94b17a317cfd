package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/client/sync"
	"github.com/iudanet/opsync/pkg/api"
)

// StatusOutput вывод команды status.
// RemoteError заполняется, если сервер недоступен.
type StatusOutput struct {
	Local       *sync.LocalStatus   `json:"local"`
	Remote      *api.StatusResponse `json:"remote,omitempty"`
	RemoteError string              `json:"remote_error,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show local sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runStatus(cmd.Context(), remote)
			})
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "also query the server summary")

	return cmd
}

func (c *Cli) runStatus(ctx context.Context, remote bool) error {
	local, err := c.syncService.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	out := StatusOutput{Local: local}
	if remote {
		if out.Remote, err = c.apiClient.Status(ctx, local.DeviceID); err != nil {
			out.RemoteError = err.Error()
		}
	}

	if c.jsonOutput() {
		return c.printJSON(out)
	}

	c.io.Println("=== Sync Status ===")
	c.io.Println()
	c.io.Printf("Device:     %s\n", local.DeviceID)
	c.io.Printf("User:       %s\n", local.UserID)
	c.io.Printf("Watermark:  %d\n", local.ServerSeq)
	if local.LastSyncTimestamp > 0 {
		c.io.Printf("Last sync:  %s\n", time.UnixMilli(local.LastSyncTimestamp).UTC().Format(time.RFC3339))
	} else {
		c.io.Println("Last sync:  never")
	}
	c.io.Println()

	if local.Pending > 0 {
		c.io.Printf("Pending sync: %d operation(s) waiting to be pushed\n", local.Pending)
		c.io.Println("Run 'opsync sync' to synchronize with server.")
	} else {
		c.io.Println("All local operations are synchronized")
	}
	if local.Conflicts > 0 {
		c.io.Printf("Conflicts: %d entity(ies) need a decision, see 'opsync conflicts list'\n", local.Conflicts)
	}

	if remote {
		c.io.Println()
		if out.RemoteError != "" {
			c.io.Printf("Server: unavailable (%s)\n", out.RemoteError)
			return nil
		}
		c.io.Printf("Server operations: %d\n", out.Remote.TotalOperations)
		c.io.Printf("Server head:       %d (behind by %d)\n", out.Remote.LatestServerSeq, max(out.Remote.LatestServerSeq-local.ServerSeq, 0))
	}

	return nil
}
