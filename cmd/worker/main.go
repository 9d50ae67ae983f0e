package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gigmarket/contracts/mq"
	"gigmarket/internal/mqhandler"
	"gigmarket/internal/notify"
	"gigmarket/internal/processor"
	"gigmarket/internal/repository"
	"gigmarket/internal/service/settlement"
	"gigmarket/pkg/config"
	"gigmarket/pkg/db"
	"gigmarket/pkg/logger"
	pkgmq "gigmarket/pkg/mq"
	redisclient "gigmarket/pkg/redis"
	"gigmarket/pkg/util"
)

const maxRetries = 5

func main() {
	cfg := config.MustLoad()

	log := logger.NewLogger(config.GetEnv("LOG_LEVEL", "info"))
	defer log.Sync()

	log.Info("Starting gigmarket worker...", zap.String("mq_url", cfg.MQ.URL))

	rdb, err := redisclient.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	dlq, err := pkgmq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlq.Close()

	store := repository.NewPostgresStore(pool, log)
	engine := settlement.NewEngine(store, processor.NewClient(cfg.Processor, log), cfg.Market, log)
	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	retries := util.NewRetryCounter(rdb, time.Hour)

	eventHandler := mqhandler.NewProcessorEventHandler(engine, deduper, log)
	projectHandler := mqhandler.NewProjectCreatedHandler(notify.NewRedisNotifier(rdb, log), log)

	bindings := []struct {
		queue      string
		routingKey string
		handle     pkgmq.MessageHandler
	}{
		{"processor.event.settle.q", mq.RoutingKeyProcessorEvent, eventHandler.Handle},
		{"project.created.notify.q", mq.RoutingKeyProjectCreated, projectHandler.Handle},
	}

	consumers := make([]*pkgmq.Consumer, 0, len(bindings))
	for _, b := range bindings {
		log.Info("Initializing consumer", zap.String("queue", b.queue), zap.String("routing_key", b.routingKey))
		c, err := pkgmq.NewConsumer(cfg.MQ.URL, b.queue, b.routingKey, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		c.WithDeadLetter(dlq, retries, maxRetries)
		c.SetHandler(b.handle)
		consumers = append(consumers, c)

		go func(c *pkgmq.Consumer, queue string) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("queue", queue), zap.Error(err))
			}
		}(c, b.queue)
	}

	log.Info("All consumers started, worker is ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")
	for _, c := range consumers {
		c.Close()
	}
	log.Info("Worker stopped")
}
