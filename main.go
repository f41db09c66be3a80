// main.go
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"courier-booking/cmd"
	"courier-booking/internal/data/repository"
	"courier-booking/internal/data/repository/memstore"
	"courier-booking/internal/wire"
	"courier-booking/pkg/cache"
	"courier-booking/pkg/database"
	"courier-booking/pkg/eventbus"
	"courier-booking/pkg/payment"
	"courier-booking/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("storage", config.Storage.Driver),
		zap.String("payment_provider", config.Payment.Provider),
		zap.String("event_publisher", config.Events.Publisher),
	)

	if config.JWT.Secret == "" {
		logger.Fatal("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, closeRepo := openRepository(ctx, config, logger)
	defer closeRepo()

	gateway := openGateway(config, logger)

	publisher := openPublisher(config, logger)
	defer publisher.Close()

	dedup, closeDedup := openDeduper(ctx, config, logger)
	defer closeDedup()

	// Wire all dependencies
	app := wire.Wiring(repos, gateway, dedup, publisher, config, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cmd.APIServer(gctx, app.Router, config.App.Port, logger)
	})
	g.Go(func() error {
		return app.Service.Events.Run(gctx, config.Events.RelayInterval)
	})
	g.Go(func() error {
		return app.Service.Booking.RunExpirySweeper(gctx, config.Booking.SweepInterval)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		return
	}
	logger.Info("Application stopped")
}

func openRepository(ctx context.Context, config *utils.Config, logger *zap.Logger) (*repository.Repository, func()) {
	if config.Storage.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		repos, _ := memstore.New()
		return repos, func() {}
	}

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	if config.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			logger.Fatal("Failed to apply schema", zap.Error(err))
		}
		logger.Info("Database schema applied")
	}

	return repository.NewRepository(db, logger), db.Close
}

func openGateway(config *utils.Config, logger *zap.Logger) payment.Gateway {
	var gateway payment.Gateway
	switch config.Payment.Provider {
	case "stripe":
		if config.Payment.StripeSecretKey == "" {
			logger.Fatal("STRIPE_SECRET_KEY is required for the stripe provider")
		}
		gateway = payment.NewStripeGateway(config.Payment.StripeSecretKey, config.Payment.WebhookSecret, logger)
	case "simulated", "":
		logger.Warn("Using simulated payment processor")
		gateway = payment.NewSimulatedGateway(config.Payment.WebhookSecret)
	default:
		logger.Fatal("Unknown payment provider", zap.String("provider", config.Payment.Provider))
	}

	return payment.WithRetry(gateway, config.Payment.MaxRetries, config.Payment.RetryBaseDelay, logger)
}

func openPublisher(config *utils.Config, logger *zap.Logger) eventbus.Publisher {
	switch config.Events.Publisher {
	case "kafka":
		publisher, err := eventbus.NewKafkaPublisher(config.Events.KafkaBrokers, config.Events.KafkaTopic)
		if err != nil {
			logger.Fatal("Failed to create kafka publisher", zap.Error(err))
		}
		logger.Info("Publishing settlement events to kafka",
			zap.Strings("brokers", config.Events.KafkaBrokers),
			zap.String("topic", config.Events.KafkaTopic))
		return publisher
	case "log", "":
		return eventbus.NewLogPublisher(logger)
	default:
		logger.Fatal("Unknown event publisher", zap.String("publisher", config.Events.Publisher))
		return nil
	}
}

func openDeduper(ctx context.Context, config *utils.Config, logger *zap.Logger) (cache.Deduper, func()) {
	if config.Redis.URL == "" {
		return cache.NewMemoryDeduper(config.Redis.WebhookDedupTTL), func() {}
	}

	client, err := cache.Connect(ctx, config.Redis.URL)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	logger.Info("Redis connected successfully")

	return cache.NewRedisDeduper(client, "webhook:", config.Redis.WebhookDedupTTL), func() { _ = client.Close() }
}
