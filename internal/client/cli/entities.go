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

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "put <kind[:id]>",
		Short: "Create or replace an entity document",
		Long: `Create or replace an entity document locally. The change is recorded
as an operation and pushed on the next sync.

Without an id a new entity with a generated id is created. The document is
taken from --data or, when omitted, read from stdin.`,
		Example: `  opsync put project:P1 --data '{"name":"Bridge","status":"draft"}'
  opsync put measurement --data '{"projectId":"P1","value":12.5}'
  cat statement.json | opsync put statement:S1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				body := []byte(payload)
				if payload == "" {
					var err error
					if body, err = c.io.ReadAll(); err != nil {
						return fmt.Errorf("failed to read payload: %w", err)
					}
				}
				return c.runPut(cmd.Context(), args[0], body)
			})
		},
	}

	cmd.Flags().StringVarP(&payload, "data", "d", "", "JSON document")

	return cmd
}

func (c *Cli) runPut(ctx context.Context, target string, payload []byte) error {
	prefix, id, hasID := strings.Cut(target, ":")
	kind, err := models.ParseEntityKind(prefix)
	if err != nil {
		return err
	}

	var (
		op     *models.Operation
		action string
	)
	if !hasID {
		op, err = c.dataService.Create(ctx, kind, "", payload)
		action = "Created"
	} else {
		entityID := models.EntityRef(kind, id)
		_, getErr := c.dataService.Get(ctx, entityID)
		switch {
		case getErr == nil:
			op, err = c.dataService.Update(ctx, entityID, payload)
			action = "Updated"
		case errors.Is(getErr, storage.ErrEntityNotFound):
			op, err = c.dataService.Create(ctx, kind, id, payload)
			action = "Created"
		default:
			return getErr
		}
	}
	if err != nil {
		return err
	}

	if c.jsonOutput() {
		return c.printJSON(op)
	}
	c.io.Printf("%s %s (operation %s)\n", action, op.EntityID, op.ID)
	return nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind:id>",
		Short: "Delete an entity (tombstone)",
		Long: `Mark an entity as deleted. Entities that reference it are left as they
are: dangling references are allowed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runDelete(cmd.Context(), args[0])
			})
		},
	}
}

func (c *Cli) runDelete(ctx context.Context, entityID string) error {
	op, err := c.dataService.Delete(ctx, entityID)
	if err != nil {
		return err
	}

	if c.jsonOutput() {
		return c.printJSON(op)
	}

	c.io.Printf("Deleted %s (operation %s)\n", op.EntityID, op.ID)

	// висячие ссылки допустимы, но о них стоит знать
	refs, err := c.dataService.ListReferencing(ctx, op.EntityID)
	if err != nil {
		return fmt.Errorf("failed to list references: %w", err)
	}
	if len(refs) > 0 {
		c.io.Printf("Note: %d entity(ies) still reference it:\n", len(refs))
		for _, e := range refs {
			c.io.Printf("  %s\n", e.ID)
		}
	}
	return nil
}

// EntityOutput вывод команды get
type EntityOutput struct {
	Entity      *models.Entity   `json:"entity"`
	Referencing []*models.Entity `json:"referencing,omitempty"`
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var refs bool

	cmd := &cobra.Command{
		Use:   "get <kind:id>",
		Short: "Show an entity, deleted ones included",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runGet(cmd.Context(), args[0], refs)
			})
		},
	}

	cmd.Flags().BoolVar(&refs, "refs", false, "also list live entities referencing this one")

	return cmd
}

func (c *Cli) runGet(ctx context.Context, entityID string, refs bool) error {
	entity, err := c.dataService.Get(ctx, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("entity %s not found", entityID)
		}
		return err
	}

	out := EntityOutput{Entity: entity}
	if refs {
		if out.Referencing, err = c.dataService.ListReferencing(ctx, entity.ID); err != nil {
			return fmt.Errorf("failed to list references: %w", err)
		}
	}

	if c.jsonOutput() {
		return c.printJSON(out)
	}

	c.io.Printf("=== %s ===\n", entity.ID)
	c.io.Println()
	c.printEntity(entity)

	if refs {
		c.io.Println()
		if len(out.Referencing) == 0 {
			c.io.Println("No entities reference it.")
		} else {
			c.io.Printf("Referenced by %d entity(ies):\n", len(out.Referencing))
			for _, e := range out.Referencing {
				c.io.Printf("  %s\n", e.ID)
			}
		}
	}
	return nil
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:       "list <kind>",
		Short:     "List entities of one kind",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kindNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCli(cmd, rootOpts, func(c *Cli) error {
				return c.runList(cmd.Context(), args[0], all)
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include deleted entities")

	return cmd
}

func (c *Cli) runList(ctx context.Context, kindName string, all bool) error {
	kind, err := models.ParseEntityKind(kindName)
	if err != nil {
		return fmt.Errorf("%w. Use one of: %s", err, strings.Join(kindNames(), ", "))
	}

	entities, err := c.dataService.List(ctx, kind, all)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", kind, err)
	}

	if c.jsonOutput() {
		if entities == nil {
			entities = []*models.Entity{}
		}
		return c.printJSON(entities)
	}

	if len(entities) == 0 {
		c.io.Printf("No %s entities found.\n", kind)
		return nil
	}

	c.io.Printf("Found %d %s entity(ies):\n", len(entities), kind)
	c.io.Println()
	for i, e := range entities {
		c.io.Printf("%d. %s\n", i+1, e.ID)
		c.printEntity(e)
		c.io.Println()
	}
	return nil
}

func (c *Cli) printEntity(e *models.Entity) {
	state := "live"
	if e.Deleted() {
		state = "deleted at " + e.DeletedAt.UTC().Format(time.RFC3339)
	}
	synced := "not yet"
	if e.ServerSeq > 0 {
		synced = fmt.Sprintf("server seq %d", e.ServerSeq)
	}

	c.io.Printf("   State:     %s\n", state)
	c.io.Printf("   Synced:    %s\n", synced)
	c.io.Printf("   Last op:   %s (device %s)\n", e.LastOpID, e.DeviceID)
	if e.UpdatedAt > 0 {
		c.io.Printf("   Updated:   %s\n", time.UnixMilli(e.UpdatedAt).UTC().Format(time.RFC3339))
	}
	c.printPayload("   ", e.Payload)
}

func kindNames() []string {
	names := make([]string, 0, len(models.EntityKinds))
	for _, k := range models.EntityKinds {
		names = append(names, string(k))
	}
	return names
}
