package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

// NewConflictsCommand creates the conflicts command group.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Review and resolve conflicting edits of critical fields",
	}

	cmd.AddCommand(newConflictsListCommand(rootOpts))
	cmd.AddCommand(newConflictsShowCommand(rootOpts))
	cmd.AddCommand(newConflictsResolveCommand(rootOpts))

	return cmd
}

func newConflictsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runConflictsList(cmd.Context())
			})
		},
	}
}

func newConflictsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind:id>",
		Short: "Show both sides of a conflict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runConflictsShow(cmd.Context(), args[0])
			})
		},
	}
}

func newConflictsResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		use    string
		merged string
	)

	cmd := &cobra.Command{
		Use:   "resolve <kind:id>",
		Short: "Resolve a conflict",
		Long: `Resolve a conflict by keeping the local version, accepting the remote one
or writing a merged document. keep-local and merge record a new operation
that is pushed on the next sync.`,
		Example: `  opsync conflicts resolve project:P1 --use keep-remote
  opsync conflicts resolve project:P1 --use merge --data '{"name":"Bridge","status":"approved"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				resolution := models.Resolution(use)
				body := []byte(merged)
				if resolution == models.ResolveMerge && merged == "" {
					var err error
					if body, err = c.io.ReadAll(); err != nil {
						return fmt.Errorf("failed to read merged document: %w", err)
					}
				}
				return c.runConflictsResolve(cmd.Context(), args[0], resolution, body)
			})
		},
	}

	cmd.Flags().StringVar(&use, "use", "", "resolution: keep-local, keep-remote or merge")
	cmd.Flags().StringVarP(&merged, "data", "d", "", "merged JSON document (merge only, default stdin)")
	_ = cmd.MarkFlagRequired("use")

	return cmd
}

func (c *Cli) runConflictsList(ctx context.Context) error {
	conflicts, err := c.conflicts.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}

	if c.jsonOutput() {
		if conflicts == nil {
			conflicts = []*models.Conflict{}
		}
		return c.printJSON(conflicts)
	}

	if len(conflicts) == 0 {
		c.io.Println("No open conflicts.")
		return nil
	}

	c.io.Printf("Found %d open conflict(s):\n", len(conflicts))
	c.io.Println()
	for i, cf := range conflicts {
		c.io.Printf("%d. %s [%s]\n", i+1, cf.EntityID, cf.State)
		c.io.Printf("   Fields:   %s\n", fieldsOrDash(cf.Fields))
		c.io.Printf("   Remote:   %s from device %s (seq %d)\n", cf.RemoteType, cf.RemoteDeviceID, cf.RemoteSeq)
		c.io.Printf("   Detected: %s\n", cf.DetectedAt.UTC().Format(time.RFC3339))
		c.io.Println()
	}
	c.io.Println("Use 'opsync conflicts show <id>' to compare both sides.")
	return nil
}

func (c *Cli) runConflictsShow(ctx context.Context, entityID string) error {
	cf, err := c.getConflict(ctx, entityID)
	if err != nil {
		return err
	}

	if c.jsonOutput() {
		return c.printJSON(cf)
	}

	c.io.Printf("=== Conflict on %s ===\n", cf.EntityID)
	c.io.Println()
	c.io.Printf("State:    %s\n", cf.State)
	c.io.Printf("Fields:   %s\n", fieldsOrDash(cf.Fields))
	c.io.Printf("Detected: %s\n", cf.DetectedAt.UTC().Format(time.RFC3339))
	c.io.Println()

	c.io.Printf("Local (%d operation(s)):\n", len(cf.LocalOpIDs))
	if cf.LocalDeleted {
		c.io.Println("   deleted")
	} else {
		c.printPayload("   ", cf.LocalPayload)
	}
	c.io.Println()

	c.io.Printf("Remote (%s, operation %s, device %s):\n", cf.RemoteType, cf.RemoteOpID, cf.RemoteDeviceID)
	if cf.RemoteType == models.OpDelete {
		c.io.Println("   deleted")
	} else {
		c.printPayload("   ", cf.RemotePayload)
	}
	return nil
}

func (c *Cli) runConflictsResolve(ctx context.Context, entityID string, resolution models.Resolution, merged []byte) error {
	if !resolution.Valid() {
		return fmt.Errorf("unknown resolution %q: use keep-local, keep-remote or merge", resolution)
	}
	if resolution != models.ResolveMerge {
		merged = nil
	}

	if err := c.syncService.ResolveConflict(ctx, entityID, resolution, merged); err != nil {
		if errors.Is(err, storage.ErrConflictNotFound) {
			return fmt.Errorf("no open conflict for %s", entityID)
		}
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	if c.jsonOutput() {
		return c.printJSON(map[string]string{"entity_id": entityID, "resolution": string(resolution)})
	}
	c.io.Printf("Resolved %s with %s\n", entityID, resolution)
	return nil
}

func (c *Cli) getConflict(ctx context.Context, entityID string) (*models.Conflict, error) {
	cf, err := c.conflicts.GetConflict(ctx, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrConflictNotFound) {
			return nil, fmt.Errorf("no open conflict for %s", entityID)
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return cf, nil
}

func fieldsOrDash(fields []string) string {
	if len(fields) == 0 {
		return "-"
	}
	return strings.Join(fields, ", ")
}
