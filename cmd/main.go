package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"metering-service/internal/alerts"
	"metering-service/internal/api"
	"metering-service/internal/billing"
	"metering-service/internal/cache"
	"metering-service/internal/config"
	"metering-service/internal/db"
	"metering-service/internal/detector"
	"metering-service/internal/kafka"
	"metering-service/internal/logging"
	"metering-service/internal/notify"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Report cache is optional
	var reportCache api.ReportCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ReportTTL)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer rc.Close()
		reportCache = rc
	} else {
		logger.Warn("REDIS_ADDR not set, report caching disabled")
	}

	// Notification gateway: Telegram when configured, log-only otherwise
	var gateway notify.Gateway
	if cfg.Telegram.BotToken != "" {
		gateway, err = notify.NewTelegramGateway(
			cfg.Telegram.BotToken,
			cfg.Telegram.ResidentChatID,
			cfg.Telegram.BoardChatID,
			cfg.Telegram.RatePerSecond,
			logger,
		)
		if err != nil {
			log.Fatalf("Telegram gateway failed: %v", err)
		}
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, notifications go to the log only")
		gateway = notify.NewLogGateway(logger)
	}

	hub := api.NewHub(logger)
	manager := alerts.New(dbConn, gateway, hub, logger)

	det := detector.New(detector.Config{
		BurstRatePerHour:   cfg.Detection.BurstRatePerHour,
		DripFloorPerHour:   cfg.Detection.DripFloorPerHour,
		WindowSize:         cfg.Detection.WindowSize,
		GuardianMultiplier: cfg.Detection.GuardianMultiplier,
		GuardianLookback:   cfg.Detection.GuardianLookback,
		GuardianMinHistory: cfg.Detection.GuardianMinHistory,
	})

	reconciler := billing.New(dbConn, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ingestion
	consumer := kafka.NewConsumer(
		[]string{cfg.Kafka.Broker},
		cfg.Kafka.Topic,
		cfg.Kafka.GroupID,
		dbConn,
		det,
		manager,
		cfg.Detection.GuardianLookback+cfg.Detection.GuardianMinHistory,
		logger,
	)
	defer consumer.Close()
	go func() {
		if err := consumer.Run(ctx); err != nil {
			logger.Errorf("Kafka consumer stopped: %v", err)
			stop()
		}
	}()

	// Operator API
	handler := api.NewHandler(manager, reconciler, dbConn, reportCache, cfg.Alerts.StaleAfter, logger)
	router := api.NewRouter(logger, cfg, handler, hub)
	logger.Infof("Starting API server on %s", cfg.API.Port)
	if err := router.Run(cfg.API.Port); err != nil {
		logger.Errorf("API server failed: %v", err)
	}
}
