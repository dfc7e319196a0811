package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/sapdesk/sapdesk/internal/api/http"
	"github.com/sapdesk/sapdesk/internal/api/http/handlers"
	"github.com/sapdesk/sapdesk/internal/auth"
	"github.com/sapdesk/sapdesk/internal/classifier"
	"github.com/sapdesk/sapdesk/internal/config"
	"github.com/sapdesk/sapdesk/internal/events"
	"github.com/sapdesk/sapdesk/internal/mail"
	"github.com/sapdesk/sapdesk/internal/observability"
	"github.com/sapdesk/sapdesk/internal/persistence"
	"github.com/sapdesk/sapdesk/internal/pipeline"
	"github.com/sapdesk/sapdesk/internal/repository"
	"github.com/sapdesk/sapdesk/internal/scheduler"
	"github.com/sapdesk/sapdesk/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
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

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	logRepo := repository.NewTicketLogRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	emailRepo := repository.NewEmailSourceRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)

	systemUser, err := userRepo.EnsureSystemUser(ctx)
	if err != nil {
		logger.Fatal("failed to ensure system user", zap.Error(err))
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	verifier := auth.NewGraphVerifier(cfg.Graph.Timeout())
	authMiddleware := auth.NewMiddleware(tokenManager, userRepo)

	authService := service.NewAuthService(verifier, tokenManager, userRepo, logger)
	userService := service.NewUserService(userRepo)
	ticketService := service.NewTicketService(ticketRepo, logRepo, commentRepo, attachmentRepo, dispatcher, logger)
	adminService := service.NewAdminService(userRepo, auditRepo, logger)
	analyticsService := service.NewAnalyticsService(ticketRepo, emailRepo, redis.Client, logger)
	service.NewNotificationService(dispatcher, analyticsService, logger)

	var fetcher mail.Fetcher
	if cfg.Graph.UseMock {
		fetcher = mail.NewMockFetcher()
		logger.Info("using mock mail fetcher")
	} else {
		fetcher = mail.NewGraphFetcher(cfg.Graph.ServiceToken, cfg.Graph.Mailbox, cfg.Graph.Timeout())
	}

	var clf classifier.Classifier
	if cfg.LLM.UseMock || cfg.LLM.APIKey == "" {
		clf = classifier.NewMockClassifier()
		logger.Info("using mock classifier")
	} else {
		clf = classifier.NewOpenAIClassifier(cfg.LLM.APIKey, cfg.LLM.Model,
			cfg.LLM.MaxTokens, cfg.LLM.Temperature, cfg.LLM.Timeout(), logger)
	}

	processor := pipeline.NewProcessor(fetcher, clf, emailRepo, ticketService,
		dispatcher, metrics, cfg.Pipeline, systemUser.ID, logger)

	sched := scheduler.New(processor, cfg.Scheduler, redis.Client, logger)
	if cfg.Scheduler.Enabled {
		sched.Start(ctx)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		Admin:          handlers.NewAdminHandler(adminService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		Emails:         handlers.NewEmailsHandler(processor, emailRepo),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	sched.Stop()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
