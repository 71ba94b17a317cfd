package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/opsync/internal/client/iocli"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the config file,
OPSYNC_* environment variables and global flags. The access token is masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			c := &Cli{io: iocli.NewStdio(cmd.InOrStdin(), cmd.OutOrStdout()), cfg: cfg, format: rootOpts.Format}
			return c.runConfig()
		},
	}
}

func (c *Cli) runConfig() error {
	cfg := *c.cfg
	if cfg.Server.Token != "" {
		cfg.Server.Token = "***"
	}

	if c.jsonOutput() {
		// ключи как в yaml: конфиг проходит через промежуточную map
		var doc map[string]any
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return c.printJSON(doc)
	}

	enc := yaml.NewEncoder(c.io)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
