package main

import (
	"fmt"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/config"
	"github.com/Aksuiekbro/debetter-sub002/middleware"
	"github.com/spf13/cobra"
)

func newTokenCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed API token",
		Long: `Print a signed API token for an operator or judge.

Judges must use their entrant ID as --user so that submitted evaluations
are attributed to them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}

			token, err := middleware.NewToken([]byte(cfg.Auth.JWTSecret), userID, middleware.Role(role), ttl, time.Now())
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user or judge entrant ID")
	cmd.Flags().StringVar(&role, "role", string(middleware.RoleOrganizer), "admin, organizer or judge")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	if err := cmd.MarkFlagRequired("user"); err != nil {
		panic(err)
	}
	return cmd
}
