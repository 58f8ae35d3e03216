package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/arnavshah/secret-santa-api/internal/config"
	"github.com/arnavshah/secret-santa-api/pkg/auth"
	"github.com/arnavshah/secret-santa-api/pkg/handlers"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen <userID>",
		Short: "Sign an API key for a user with API_MASTER_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("API_MASTER_SECRET")
			if secret == "" {
				return errors.New("API_MASTER_SECRET not found in environment or .env")
			}

			key := auth.New("", secret).GenerateHMACKey(args[0])
			fmt.Fprintf(cmd.ErrOrStderr(), "Generated Key for %s:\n", color.YellowString(args[0]))
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <sessionID>",
		Short: "Issue a tracking token and dashboard URL for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.TrackingTokenTTL
			}

			token, err := auth.New(cfg.JWTSecret, cfg.APIMasterSecret).CreateTrackingToken(args[0], ttl)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			fmt.Fprintf(out, "%s %s%s%s?token=%s\n", color.CyanString("→"), cfg.PublicBaseURL, handlers.TrackPath, args[0], token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to TRACKING_TOKEN_TTL)")
	return cmd
}
