package main

import (
	"errors"
	"fmt"

	httpAdapter "github.com/aretw0/rux/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for rux serve --auth-secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if cfg.AuthSecret == "" {
			return errors.New("--secret (or RUX_AUTH_SECRET) is required")
		}

		token, err := httpAdapter.IssueToken([]byte(cfg.AuthSecret), subject, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&cfg.AuthSecret, "secret", "", "Signing secret")
	tokenCmd.Flags().String("subject", "rux", "Token subject")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (0 never expires)")
}
