package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/opsync/internal/server/handlers"
)

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an access token for a user",
		Long: `Issue a signed access token. The user id scopes every operation the
token holder pushes and pulls. Put the token into the client config
(server.token) or OPSYNC_SERVER_TOKEN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if err := cfg.RequireSecret(); err != nil {
				return err
			}
			if cmd.Flags().Changed("ttl") {
				if ttl <= 0 {
					return fmt.Errorf("ttl must be positive")
				}
				cfg.JWT.TTL = ttl
			}

			token, expiresIn, err := handlers.GenerateAccessToken(handlers.JWTConfig{
				Secret:         []byte(cfg.JWT.Secret),
				Issuer:         cfg.JWT.Issuer,
				AccessTokenTTL: cfg.JWT.TTL,
			}, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %s\n", time.Duration(expiresIn)*time.Second)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default jwt.ttl from config)")

	return cmd
}
