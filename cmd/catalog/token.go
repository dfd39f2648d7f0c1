package main

import (
	"fmt"
	"time"

	"catalog_service/config"
	"catalog_service/internal/auth"

	"github.com/spf13/cobra"
)

var (
	tokenUID   string
	tokenAdmin bool
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a custom sign-in token",
	Long: `Prints a token accepted by POST /auth/token and by INITIAL_AUTH_TOKEN.
It is signed with JWT_SECRET.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUID, "uid", "", "User id the token signs in as")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "Grant admin access")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "How long the token can be exchanged")
	_ = tokenCmd.MarkFlagRequired("uid")
}

func runToken(cmd *cobra.Command, args []string) error {
	logger := setupLogger("warn", "text")
	cfg, err := config.Load(logger)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: cfg.JWTSecret, SessionTTL: cfg.SessionTTL})
	if err != nil {
		return err
	}
	token, err := tokens.MintCustomToken(tokenUID, tokenAdmin, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
