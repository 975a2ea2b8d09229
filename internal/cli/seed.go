package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
)

var (
	seedClientName string
	seedCode       string
	seedUsernames  []string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a client with a project invite code and optional predefined users",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedClientName, "client", "", "client company name (required)")
	seedCmd.Flags().StringVar(&seedCode, "code", "", "project invite code (required)")
	seedCmd.Flags().StringSliceVar(&seedUsernames, "user", nil, "predefined usernames to auto-bind (repeatable)")
	_ = seedCmd.MarkFlagRequired("client")
	_ = seedCmd.MarkFlagRequired("code")
}

func runSeed(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	clients := repository.NewClientRepository(pool)
	projects := repository.NewProjectRepository(pool)

	code := strings.TrimSpace(seedCode)
	if existing, err := projects.GetByInviteCode(ctx, code); err == nil {
		logger.Info("invite code already provisioned; nothing to do",
			zap.String("invite_code", code),
			zap.Int64("project_id", existing.ID))
		return nil
	}

	client := &domain.Client{Name: strings.TrimSpace(seedClientName)}
	if err := clients.Create(ctx, client); err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	project := &domain.Project{
		ClientID:   client.ID,
		Name:       client.Name,
		InviteCode: &code,
		IsActive:   true,
	}
	if err := projects.Create(ctx, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	for _, username := range seedUsernames {
		username = strings.TrimPrefix(strings.TrimSpace(username), "@")
		if username == "" {
			continue
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO predefined_users (username, client_id) VALUES ($1,$2) ON CONFLICT (username) DO NOTHING`,
			strings.ToLower(username), client.ID); err != nil {
			return fmt.Errorf("predefined user %s: %w", username, err)
		}
	}

	total, err := projects.Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("seeded",
		zap.Int64("client_id", client.ID),
		zap.Int64("project_id", project.ID),
		zap.String("invite_code", code),
		zap.Int64("projects_total", total))
	return nil
}
