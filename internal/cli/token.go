package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quizhub-service/internal/auth"
	"quizhub-service/internal/config"
)

// NewTokenCmd mints a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var uid, email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth secret not configured")
			}
			tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.Issuer, config.Duration(cfg.Auth.TTL, 24*time.Hour))
			token, expires, err := tokens.Issue(auth.Session{UID: uid, Email: email})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&uid, "uid", "", "user id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	_ = cmd.MarkFlagRequired("uid")
	return cmd
}
