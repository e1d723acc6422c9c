package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/middleware"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		user    string
		channel string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the content service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenDuration
			}
			if channel == "" {
				channel = cfg.Client.ChannelID
			}

			middleware.SetJWTSecret(cfg.Auth.JWTSecret)
			token, err := middleware.GenerateToken(user, channel, ttl)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "User id to put in the token")
	cmd.Flags().StringVar(&channel, "channel", "", "Channel id to put in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to auth.tokenDuration)")
	cmd.MarkFlagRequired("user")

	return cmd
}
