package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/server"
	"github.com/iudanet/opsync/internal/server/archive"
	"github.com/iudanet/opsync/internal/server/storage/sqlite"
)

// NewArchiveCommand creates the archive command group.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Export the operation log to object storage",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Upload all records after the archive cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, rootOpts, true, func(store *sqlite.Storage, a *archive.Archiver) error {
				done, err := a.Drain(cmd.Context())
				for _, rec := range done {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tseq %d-%d\t%d record(s)\n", rec.ObjectKey, rec.FromSeq, rec.ToSeq, rec.Count)
				}
				if err != nil {
					return err
				}
				if len(done) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to archive.")
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List exported ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, rootOpts, false, func(store *sqlite.Storage, _ *archive.Archiver) error {
				archives, err := store.ListArchives(cmd.Context())
				if err != nil {
					return err
				}
				if len(archives) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No archives.")
					return nil
				}
				for _, rec := range archives {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tseq %d-%d\t%d record(s)\t%s\n",
						rec.ObjectKey, rec.FromSeq, rec.ToSeq, rec.Count, rec.CreatedAt.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <object-key>",
		Short: "Print archived records as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, rootOpts, true, func(_ *sqlite.Storage, a *archive.Archiver) error {
				ops, err := a.Fetch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, op := range ops {
					if err := enc.Encode(op); err != nil {
						return err
					}
				}
				return nil
			})
		},
	})

	return cmd
}

// withArchive открывает хранилище и, если нужно, подключается к S3
func withArchive(cmd *cobra.Command, opts *RootOptions, needObjects bool, fn func(store *sqlite.Storage, a *archive.Archiver) error) (err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if needObjects && !cfg.Archive.Enabled() {
		return fmt.Errorf("archive is disabled: set archive.bucket")
	}

	logger, err := config.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := sqlite.New(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	var a *archive.Archiver
	if needObjects {
		if a, err = server.NewArchiver(ctx, cfg.Archive, store, logger); err != nil {
			return err
		}
	}
	return fn(store, a)
}
