package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mikey786/Mediasoup/internal/bus"
	"github.com/Mikey786/Mediasoup/internal/config"
	"github.com/Mikey786/Mediasoup/internal/directory"
	"github.com/Mikey786/Mediasoup/internal/domain"
	"github.com/Mikey786/Mediasoup/internal/events"
	"github.com/Mikey786/Mediasoup/internal/handler"
	"github.com/Mikey786/Mediasoup/internal/sfu"
	"github.com/Mikey786/Mediasoup/pkg/database"
	pkglog "github.com/Mikey786/Mediasoup/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "signaling-service",
	})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting signaling-service")

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogQueries:      cfg.Database.LogQueries,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Auto-migrate
	if err := database.AutoMigrate(db, &domain.RoomModel{}, &domain.ParticipantModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Initialize room directory
	dir := directory.NewGormDirectory(db)

	// Initialize SFU gateway client
	sfuClient := sfu.NewClient(cfg.SFU.BaseURL, cfg.SFU.Timeout)
	logger.Info().Str("base_url", cfg.SFU.BaseURL).Msg("sfu gateway configured")

	// Initialize broadcast bus
	var broadcastBus bus.Bus
	switch cfg.Bus.Driver {
	case "redis":
		redisBus, err := bus.NewRedisBus(cfg.Bus.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis bus")
		}
		broadcastBus = redisBus
		logger.Info().Str("addr", cfg.Bus.Redis.Address).Msg("redis bus connected")
	default:
		broadcastBus = bus.NewLocalBus()
		logger.Info().Msg("using in-process broadcast bus")
	}
	defer broadcastBus.Close()

	// Initialize Kafka producer for room lifecycle events
	var eventProducer events.Producer
	if cfg.Kafka.Enabled {
		producer, err := events.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, lifecycle events disabled")
		} else {
			eventProducer = producer
			defer producer.Close()
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(dir, sfuClient, broadcastBus, eventProducer, cfg.WebSocket)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Register routes
	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("addr", server.Addr).Str("driver", cfg.Database.Driver).Msg("signaling-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down signaling-service")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("signaling-service stopped")
}
