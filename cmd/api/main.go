package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"example.com/coach/internal/api"
	"example.com/coach/internal/auth"
	"example.com/coach/internal/completion"
	"example.com/coach/internal/config"
	"example.com/coach/internal/domain"
	"example.com/coach/internal/draft"
	"example.com/coach/internal/logging"
	"example.com/coach/internal/nutrition"
	"example.com/coach/internal/outbox"
	"example.com/coach/internal/persistence/memory"
	persistence "example.com/coach/internal/persistence/postgres"
	"example.com/coach/internal/profile"
	"example.com/coach/internal/progress"
	httptransport "example.com/coach/internal/transport/http"
	"example.com/coach/internal/widget"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("coach api stopped")
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCloser := logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.LogToStdout,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogJSON,
	})
	defer func() { err = multierr.Append(err, logCloser.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store      domain.Store
		dispatcher *outbox.Dispatcher
	)
	switch cfg.StoreBackend {
	case "memory":
		store = memory.NewRepository()
		log.Warn("using in-memory store; history is lost on restart and no events are published")
	case "postgres":
		var pool *pgxpool.Pool
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		store = persistence.NewRepository(pool)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, outbox.WithProducerLogger(log.WithField("component", "outbox")))
		defer func() { err = multierr.Append(err, producer.Close()) }()
		dispatcher = outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	default:
		return fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	kv, kvCloser, err := draftKV(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, kvCloser.Close()) }()

	profiles := profile.NewService(store)
	handler := api.NewHandler(api.Dependencies{
		Sessions:  domain.NewService(store),
		Workouts:  completion.NewManager(kv, store, completion.WithListener(profiles)),
		Progress:  progress.NewService(store),
		Profiles:  profiles,
		Nutrition: nutrition.NewService(store, store, profiles),
		Scheduler: widget.NewScheduler(store),
	})
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{
		Secret:      cfg.JWTSecret,
		Issuer:      cfg.JWTIssuer,
		PublicPaths: cfg.AuthPublicPaths,
	})
	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux, httptransport.LogRequests, httptransport.Recover, authMiddleware.Wrap))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("address", cfg.HTTPAddress).Info("coach api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown requested")
	case err = <-serveErr:
		log.WithError(err).Error("server error")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		err = multierr.Append(err, fmt.Errorf("graceful shutdown: %w", shutdownErr))
	}
	if dispatcher != nil {
		dispatcher.Wait()
	}
	return err
}

func draftKV(cfg config.Config) (draft.KV, io.Closer, error) {
	switch cfg.DraftBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return draft.NewRedisKV(client), client, nil
	case "file":
		kv, err := draft.NewFileKV(cfg.DraftDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open draft dir: %w", err)
		}
		return kv, closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, fmt.Errorf("unknown draft backend %q", cfg.DraftBackend)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
