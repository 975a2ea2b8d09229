package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/config"
)

var (
	tokenOperatorID int64
	tokenTTLMinutes int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API bearer token for an allow-listed operator",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenOperatorID, "operator", 0, "operator chat ID (required)")
	tokenCmd.Flags().IntVar(&tokenTTLMinutes, "ttl", 24*60, "token lifetime in minutes")
	_ = tokenCmd.MarkFlagRequired("operator")
}

func runToken(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Gateway.IsOperator(tokenOperatorID) {
		return fmt.Errorf("operator %d is not on the allow-list", tokenOperatorID)
	}

	tokens := auth.NewTokenManager(cfg.HTTP.JWTSecret, tokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(tokenOperatorID)
	if err != nil {
		return err
	}
	fmt.Printf("%s\nexpires: %s\n", token, expiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
