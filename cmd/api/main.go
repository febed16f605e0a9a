package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/desk-bridge/internal/api/http"
	"github.com/spec-kit/desk-bridge/internal/api/http/handlers"
	"github.com/spec-kit/desk-bridge/internal/auth"
	"github.com/spec-kit/desk-bridge/internal/config"
	"github.com/spec-kit/desk-bridge/internal/desk"
	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/events"
	"github.com/spec-kit/desk-bridge/internal/observability"
	"github.com/spec-kit/desk-bridge/internal/persistence"
	"github.com/spec-kit/desk-bridge/internal/repository"
	"github.com/spec-kit/desk-bridge/internal/service"
	"github.com/spec-kit/desk-bridge/internal/telegram"
	"github.com/spec-kit/desk-bridge/internal/worker"
)

type chatBot interface {
	telegram.Sender
	telegram.WebhookManager
}

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

	metrics := observability.NewMetrics()

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

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	readiness := map[string]handlers.Pinger{}
	var journalRepo repository.RelayJournalRepository
	if pool := pg.PoolHandle(); pool != nil {
		journalRepo = repository.NewRelayJournalRepository(pool)
		readiness["postgres"] = pg
	}

	var associations repository.AssociationRepository
	if redis != nil {
		associations = repository.NewRedisAssociationRepository(redis.Client, cfg.Redis.KeyPrefix, cfg.Cache.TTL())
		readiness["redis"] = redis
	} else {
		associations = repository.NewMemoryAssociationRepository(cfg.Cache.Capacity, cfg.Cache.TTL())
	}

	var bot chatBot = telegram.Disabled{}
	var groupChatID int64
	if cfg.Telegram.Configured() {
		client, err := telegram.New(cfg.Telegram, logger.Named("telegram"))
		if err != nil {
			logger.Fatal("failed to init telegram bot", zap.Error(err))
		}
		bot, groupChatID = client, client.ChatID()
	} else {
		logger.Warn("telegram not configured; chat delivery disabled")
	}
	if !cfg.Desk.Configured() {
		logger.Warn("zoho desk not configured; ticket creation will fail")
	}

	deskHTTP := &http.Client{Timeout: cfg.Desk.Timeout()}
	credentials := desk.NewTokenStore(domain.Credential{
		AccessToken:  cfg.Desk.AccessToken,
		RefreshToken: cfg.Desk.RefreshToken,
		ClientID:     cfg.Desk.ClientID,
		ClientSecret: cfg.Desk.ClientSecret,
	}, cfg.Desk.AccountsURL, desk.TokenStoreDependencies{
		HTTPClient: deskHTTP,
		Logger:     logger.Named("credentials"),
		Metrics:    metrics,
	})
	deskClient := desk.NewRetryingClient(cfg.Desk.APIDomain, cfg.Desk.OrgID, desk.ClientDependencies{
		Credentials: credentials,
		HTTPClient:  deskHTTP,
		Logger:      logger.Named("desk"),
		Metrics:     metrics,
	})

	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	journalService := service.NewJournalService(dispatcher, journalRepo, logger.Named("journal"))
	worker.StartJournalWorker(journalService)

	relay := service.NewTicketRelay(service.TicketRelayDependencies{
		Contacts:     desk.NewContactResolver(deskClient, logger.Named("contacts")),
		Tickets:      desk.NewTicketAPI(deskClient, cfg.Desk.DepartmentID),
		Sender:       bot,
		Associations: associations,
		Logger:       logger.Named("relay"),
	})
	router := service.NewEventRouter(service.EventRouterDependencies{
		GroupChatID: groupChatID,
		Relay:       relay,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger.Named("router"),
	})

	tokens := auth.NewTokenManager(cfg.Auth.AdminJWTSecret, cfg.Auth.AdminTokenTTLMinutes)
	if !tokens.Enabled() {
		logger.Warn("ADMIN_JWT_SECRET not set; admin endpoints are unauthenticated")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   handlers.NewHealthHandler(cfg, readiness),
		Telegram: handlers.NewTelegramHandler(router, logger),
		Desk:     handlers.NewDeskHandler(router, logger),
		Admin: handlers.NewAdminHandler(handlers.AdminDependencies{
			Webhooks:     bot,
			Journal:      journalService,
			Associations: associations,
			PublicURL:    cfg.App.WebhookURL,
			Logger:       logger,
		}),
		AdminMiddleware: auth.NewAdminMiddleware(tokens),
		Metrics:         metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
