package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"postboard/internal/config"
	"postboard/internal/consul"
	"postboard/internal/database"
	"postboard/internal/events"
	"postboard/internal/logger"
	"postboard/internal/posts"
	"postboard/internal/server"
)

func gracefulShutdown(apiServer *http.Server, registry *consul.Client, serviceID string, log *slog.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	if registry != nil {
		if err := registry.Deregister(serviceID); err != nil {
			log.Error("Failed to deregister from Consul", "error", err)
		} else {
			log.Info("Deregistered from Consul", "service_id", serviceID)
		}
	}

	// The server has 5 seconds to finish the requests it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server exiting")

	done <- true
}

func main() {
	log := logger.New()
	logger.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("Posts Service stopped", "error", err)
		os.Exit(1)
	}
}

// run starts the service and blocks until it has shut down. Every resource
// it opens is released before it returns, on error paths too.
func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Info("Starting Posts Service",
		"port", cfg.Server.Port,
		"host", cfg.Server.Host,
		"db_host", cfg.Database.Host,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(startCtx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(startCtx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	cache := posts.NewRedisClient(startCtx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if cache != nil {
		defer func(c *redis.Client) {
			if err := c.Close(); err != nil {
				log.Warn("Failed to close Redis client", "error", err)
			}
		}(cache)
	}

	publisher := newPublisher(log)
	defer publisher.Close()

	svc := posts.NewService(posts.NewRepository(db, log), cache, publisher, log)

	srv := server.New(cfg.Server, server.Deps{
		Store:  svc,
		DB:     db,
		Cache:  cache,
		Logger: log,
	})
	apiServer := srv.HTTPServer()

	var registry *consul.Client
	service := consul.PostsService(cfg.Server.Host, cfg.Server.Port)
	if cfg.Consul.Addr != "" {
		registry, err = consul.NewClient(cfg.Consul.Addr, cfg.Consul.Token)
		if err != nil {
			return fmt.Errorf("failed to create Consul client: %w", err)
		}
		if err := registry.Register(service); err != nil {
			return fmt.Errorf("failed to register service with Consul: %w", err)
		}
		log.Info("Registered with Consul", "service_id", service.ID)
	} else {
		log.Info("Consul disabled, skipping service registration")
	}

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, registry, service.ID, log, done)

	log.Info("Posts Service listening", "addr", apiServer.Addr)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if registry != nil {
			_ = registry.Deregister(service.ID)
		}
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	log.Info("Graceful shutdown complete")
	return nil
}

// newPublisher returns a Kafka publisher when brokers are configured, and a
// no-op publisher otherwise.
func newPublisher(log *slog.Logger) events.Publisher {
	kafkaCfg := events.LoadKafkaConfig()
	if kafkaCfg == nil {
		log.Info("Kafka disabled, post events will not be published")
		return events.Noop{}
	}

	publisher, err := events.NewKafkaPublisher(kafkaCfg, log)
	if err != nil {
		log.Warn("Failed to create Kafka publisher, post events will not be published", "error", err)
		return events.Noop{}
	}
	return publisher
}
