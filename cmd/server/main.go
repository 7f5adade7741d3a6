package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/marminbh/statuswatch/internal/config"
	"github.com/marminbh/statuswatch/internal/database"
	"github.com/marminbh/statuswatch/internal/dedup"
	"github.com/marminbh/statuswatch/internal/fetcher"
	"github.com/marminbh/statuswatch/internal/handlers"
	"github.com/marminbh/statuswatch/internal/logger"
	"github.com/marminbh/statuswatch/internal/pipeline"
	"github.com/marminbh/statuswatch/internal/poller"
	"github.com/marminbh/statuswatch/internal/rabbitmq"
	"github.com/marminbh/statuswatch/internal/routes"
	"github.com/marminbh/statuswatch/internal/sink"
)

func main() {
	if err := logger.Init(os.Getenv("LOG_LEVEL")); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Dedup store: one per process, injected everywhere it is needed.
	store := dedup.NewStore()

	// Console sink is always on; AMQP and archive attach when configured.
	sinks := []sink.Sink{sink.NewConsole()}

	var rmq *rabbitmq.Connection
	if cfg.RabbitMQ != nil {
		rmq = rabbitmq.NewConnection(cfg.RabbitMQ, logger.Named("rabbitmq"))
		if err := rmq.Connect(); err != nil {
			logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rmq.Close()
		sinks = append(sinks, sink.NewAMQP(rmq))
	}

	var db *gorm.DB
	if cfg.Archive != nil {
		db, err = database.Connect(cfg.Archive, logger.Named("database"))
		if err != nil {
			logger.Fatal("Failed to connect to archive database", zap.Error(err))
		}
		defer func() {
			if err := database.Close(db); err != nil {
				logger.Error("Error closing database", zap.Error(err))
			}
		}()
		if err := database.Migrate(db); err != nil {
			logger.Fatal("Failed to migrate archive database", zap.Error(err))
		}
		sinks = append(sinks, sink.NewArchive(db))
	}

	var out sink.Sink = sinks[0]
	if len(sinks) > 1 {
		out = sink.NewMulti(logger.Named("sink"), sinks...)
	}

	pipe := pipeline.New(store, out, cfg.Pipeline, logger.Named("pipeline"))
	pipe.Start()

	// Poll origin: conditional fetcher + timer loop, cancelled on shutdown.
	pollCtx, stopPoller := context.WithCancel(context.Background())
	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		f := fetcher.New(cfg.Poller.FetchTimeout, logger.Named("fetcher"))
		poller.New(cfg.Poller, f, pipe, logger.Named("poller")).Run(pollCtx)
	}()

	app := fiber.New(fiber.Config{
		AppName:      "Status Page Monitor",
		ServerHeader: "Fiber",
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	webhookHandler := handlers.NewWebhookHandler(pipe, &cfg.Webhook, logger.Named("handlers"))
	healthHandler := handlers.NewHealthHandler(store, rmq, db)
	routes.SetupRoutes(app, webhookHandler, healthHandler)

	go func() {
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		logger.Info("Server starting",
			zap.String("address", addr),
			zap.Int("feeds", len(cfg.Poller.Feeds)),
		)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	// Stop producers first, then drain the pipeline, then close sinks
	// (via the deferred rmq/db closes above).
	stopPoller()
	<-pollerDone

	if err := app.Shutdown(); err != nil {
		logger.Error("Error during server shutdown", zap.Error(err))
	}

	pipe.Stop()

	logger.Info("Server stopped")
}
