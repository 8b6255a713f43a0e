package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PEI-HAZARDS/gatewatch/internal/gateway"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a gateway access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if cfg.Serve.JWTSecret == "" {
			return errors.New("no JWT secret configured (serve.jwtSecret or GATEWATCH_JWT_SECRET)")
		}
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %s", ttl)
		}
		token, err := gateway.IssueAccessToken(cfg.Serve.JWTSecret, subject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "operator", "token subject")
	tokenCmd.Flags().Duration("ttl", 30*24*time.Hour, "token lifetime")
}
