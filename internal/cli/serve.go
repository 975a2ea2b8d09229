package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-bot/internal/api/http"
	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/session"
	"github.com/spec-kit/support-bot/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the notification worker and the operator API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	clientRepo := repository.NewClientRepository(pool)
	projectRepo := repository.NewProjectRepository(pool)
	bindingRepo := repository.NewBindingRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)

	var sessions session.Store = session.NewRedisStore(redis.Client)
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable; sessions will not survive restarts", zap.Error(err))
		sessions = session.NewMemoryStore()
	}
	dispatcher := events.NewInMemoryDispatcher(logger)
	tg := gateway.NewTelegram(cfg.Gateway.BotToken)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
	})
	routing := service.NewRoutingService(service.RoutingDependencies{
		Gateway:       tg,
		ClientRepo:    clientRepo,
		TicketRepo:    ticketRepo,
		MessageRepo:   messageRepo,
		SupportChatID: cfg.Gateway.SupportChatID,
		Logger:        logger,
	})
	hours := service.NewHoursService(cfg.Hours)
	conversation := service.NewConversationService(service.ConversationDependencies{
		Gateway:      tg,
		Sessions:     sessions,
		BindingRepo:  bindingRepo,
		ProjectRepo:  projectRepo,
		ClientRepo:   clientRepo,
		TicketRepo:   ticketRepo,
		FeedbackRepo: feedbackRepo,
		Lifecycle:    lifecycle,
		Routing:      routing,
		Hours:        hours,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	operator := service.NewOperatorService(service.OperatorDependencies{
		Gateway:    tg,
		Sessions:   sessions,
		TicketRepo: ticketRepo,
		Lifecycle:  lifecycle,
		Routing:    routing,
		Config:     cfg.Gateway,
		Logger:     logger,
	})

	notifier := worker.NewNotificationWorker(ticketRepo, feedbackRepo, routing, logger)
	notifier.Register(dispatcher)

	router := service.NewUpdateRouter(conversation, operator, cfg.Gateway.SupportChatID, logger)

	metrics := observability.NewMetrics()
	tokens := auth.NewTokenManager(cfg.HTTP.JWTSecret, 0)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, 10*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, "dev", pg, redis),
		OpsTickets:     handlers.NewOpsTicketsHandler(ticketRepo),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewMiddleware(tokens, cfg.Gateway),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	// Per-user serialized dispatch: updates for one user stay ordered while
	// different users are handled concurrently.
	pump := service.NewUpdatePump(0, 0, router.Route, logger)
	pump.Start(ctx)

	go func() {
		logger.Info("polling for updates")
		if err := tg.Poll(ctx, cfg.Gateway.PollTimeout(), func(upd gateway.Update) {
			metrics.RecordUpdate(string(upd.Kind))
			pump.Submit(upd)
		}); err != nil && ctx.Err() == nil {
			logger.Fatal("update polling stopped", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()
	pump.Stop()
	_ = app.Shutdown()
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
