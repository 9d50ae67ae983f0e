package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gigmarket/internal/handler"
	"gigmarket/internal/httpserver"
	"gigmarket/internal/notify"
	"gigmarket/internal/processor"
	"gigmarket/internal/provider"
	"gigmarket/internal/repository"
	"gigmarket/internal/scheduler"
	"gigmarket/internal/service/assist"
	"gigmarket/internal/service/auth"
	"gigmarket/internal/service/bidding"
	"gigmarket/internal/service/engagement"
	"gigmarket/internal/service/quota"
	"gigmarket/internal/service/reputation"
	"gigmarket/internal/service/settlement"
	"gigmarket/pkg/config"
	"gigmarket/pkg/db"
	"gigmarket/pkg/logger"
	"gigmarket/pkg/mq"
	"gigmarket/pkg/outbox"
	redisclient "gigmarket/pkg/redis"
)

func main() {
	cfg := config.MustLoad()

	log := logger.NewLogger(config.GetEnv("LOG_LEVEL", "info"))
	defer log.Sync()

	log.Info("Starting gigmarket server...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("provider", cfg.Provider.Name),
	)

	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	store := repository.NewPostgresStore(pool, log)

	ledger, err := quota.NewLedger(store, cfg.Market, log)
	if err != nil {
		log.Fatal("Failed to init quota ledger", zap.Error(err))
	}
	aiProvider, err := provider.New(cfg.Provider, log)
	if err != nil {
		log.Fatal("Failed to init AI provider", zap.Error(err))
	}

	lifecycle := engagement.NewLifecycle(store, cfg.Market, log)
	book := bidding.NewBook(store, log)
	rep := reputation.NewLedger(store, log)
	engine := settlement.NewEngine(store, processor.NewClient(cfg.Processor, log), cfg.Market, log)
	replay := outbox.NewReplayService(store.Outbox(), publisher, log)

	h := httpserver.Handlers{
		Auth:    handler.NewAuthHandler(auth.NewService(store, cfg.JWT, cfg.Market, log), log),
		Account: handler.NewAccountHandler(rep, log),
		Gig:     handler.NewGigHandler(lifecycle, book, log),
		Project: handler.NewProjectHandler(lifecycle, rep, log),
		Payment: handler.NewPaymentHandler(engine, log),
		Assist:  handler.NewAssistHandler(assist.NewAssistant(ledger, aiProvider, log), log),
		Webhook: handler.NewWebhookHandler(publisher, cfg.Processor.WebhookSecret, log),
		Admin:   handler.NewAdminHandler(replay, ledger, log),

		Notification: handler.NewNotificationHandler(notify.NewRedisNotifier(rdb, log), log),
	}
	limiter := httpserver.NewRateLimiter(float64(cfg.Provider.RateLimitPerSec), cfg.Provider.RateLimitBurst)
	router := httpserver.NewRouter(h, httpserver.RouterConfig{
		JWTSecret:     cfg.JWT.Secret,
		AssistLimiter: limiter,
		Ready:         pool,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.StartCleanup(ctx, time.Minute)

	// outbox relay
	go outbox.NewDispatcher(store.Outbox(), publisher, log).Start(ctx)

	loc, err := time.LoadLocation(cfg.Market.Location)
	if err != nil {
		log.Fatal("Invalid market location", zap.Error(err))
	}
	sched, err := scheduler.New(ledger, replay, loc, log)
	if err != nil {
		log.Fatal("Failed to init scheduler", zap.Error(err))
	}
	sched.Start()

	srv := httpserver.NewServer(cfg.Server.Port, router, log)
	errCh := srv.Start()

	log.Info("gigmarket server is running", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server failed", zap.Error(err))
		}
	}

	log.Info("Shutting down gracefully...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	sched.Stop(stopCtx)

	if err := srv.Shutdown(30 * time.Second); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("Shutdown complete")
}
