package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ride-sharing/internal/activity"
	"github.com/example/ride-sharing/internal/auth"
	"github.com/example/ride-sharing/internal/booking"
	"github.com/example/ride-sharing/internal/config"
	"github.com/example/ride-sharing/internal/events"
	"github.com/example/ride-sharing/internal/feed"
	httpapi "github.com/example/ride-sharing/internal/http"
	"github.com/example/ride-sharing/internal/logging"
	"github.com/example/ride-sharing/internal/profile"
	"github.com/example/ride-sharing/internal/rides"
	"github.com/example/ride-sharing/internal/storage"
	"github.com/example/ride-sharing/internal/users"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.ServerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := feed.NewHub(logger)
	sink, closers, err := openPublishers(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	publisher := events.Multi{hub, sink}

	dir, err := users.NewDirectory(store, cfg.UserCacheSize)
	if err != nil {
		return fmt.Errorf("user directory: %w", err)
	}
	verifier, err := auth.NewVerifier(cfg.JWTSecret)
	if err != nil {
		return err
	}

	deps := httpapi.Deps{
		Rides: &rides.Service{
			Store: store, Users: dir, Events: publisher, Logger: logger, Location: cfg.Location,
		},
		Bookings: &booking.Service{
			Store: store, Users: dir, Events: publisher, Logger: logger, Location: cfg.Location,
		},
		Profiles: &profile.Service{Store: store, Cache: dir, Logger: logger},
		Feed:     hub,
		Verifier: verifier,
	}
	if cfg.RedisAddr != "" {
		act := activity.NewStore(cfg.RedisAddr, cfg.RedisPassword)
		defer act.Close()
		if err := act.Client().Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable; activity reads will fail until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		deps.Activity = act
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(deps, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ride-sharing listening", "addr", cfg.HTTPAddr, "store", cfg.StoreBackend, "events", cfg.EventsBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreFile:
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		logger.Info("using file store", "dir", cfg.DataDir)
		return fs, nil
	case config.StorePostgres:
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		if cfg.RunMigrations {
			if err := ps.Migrate(ctx); err != nil {
				_ = ps.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("schema migrated")
		}
		return ps, nil
	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return storage.NewMemoryStore(), nil
	}
}

func openPublishers(cfg config.ServerConfig, logger *slog.Logger) (events.Publisher, []io.Closer, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info("publishing events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return kp, []io.Closer{kp}, nil
	case config.EventsRabbitMQ:
		rp, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("publishing events to rabbitmq", "exchange", cfg.AMQPExchange)
		return rp, []io.Closer{rp}, nil
	default:
		return events.Nop{}, nil, nil
	}
}
