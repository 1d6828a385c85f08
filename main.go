package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/api"
	"alert-router/internal/config"
	"alert-router/internal/db"
	"alert-router/internal/filters"
	"alert-router/internal/gateway"
	"alert-router/internal/kafka"
	"alert-router/internal/logging"
	"alert-router/internal/metrics"
	"alert-router/internal/notification"
	"alert-router/internal/notifier"
	"alert-router/internal/providers"
	"alert-router/internal/queue"
	"alert-router/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed:", err)
	}
	if missing := cfg.Missing("DB_DSN"); len(missing) > 0 {
		log.Fatalf("missing required configurations: %v", missing)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatal("Logger init failed:", err)
	}
	defer logger.Close()
	base := logrus.NewEntry(logger.Logger)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to DB
	var dbConn *db.DB
	err = utils.Retry(ctx, base.WithField("component", "db"), cfg.DB.ConnectRetries, time.Second, func(ctx context.Context) error {
		dbConn, err = db.New(ctx, cfg.DB.DSN)
		return err
	})
	if err != nil {
		logger.WithError(err).Fatal("DB connect failed")
	}
	defer dbConn.Close()
	if cfg.DB.MigrationsPath != "" {
		if err := db.RunMigrations(cfg.DB.DSN, cfg.DB.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Migrations failed")
		}
	}

	q, err := queue.Connect(ctx, queue.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, base, m)
	if err != nil {
		logger.WithError(err).Fatal("Redis connect failed")
	}
	defer q.Close()
	q.SetWaitTimeout(cfg.Gateway.WaitTimeout)

	chain := filters.NewChain(base, filters.Options{
		InitialFailureDelay: cfg.Notification.InitialFailureDelay,
		RepeatFailureDelay:  cfg.Notification.RepeatFailureDelay,
		IgnoreUnknown:       cfg.Notification.IgnoreUnknown,
	})
	builder := notifier.NewBuilder(dbConn, dbConn, base)
	svc := notification.New(dbConn, chain, builder, q, dbConn, base, m, notification.Config{
		QueueSize:   cfg.Notification.QueueSize,
		MaxWorkers:  cfg.Notification.MaxWorkers,
		AckDuration: cfg.Notification.AckDuration,
		QueueFor:    cfg.QueueFor,
	})
	var wg sync.WaitGroup
	svc.Start(&wg)

	// Gateways
	sockets := providers.NewWebSocketManager(base, m)
	registry, err := gateway.TransportsFromConfig(cfg, sockets, base)
	if err != nil {
		logger.WithError(err).Fatal("Gateway setup failed")
	}
	var gateways gateway.Group
	for _, medium := range cfg.Gateway.Media {
		transport, err := registry.Get(medium)
		if err != nil {
			logger.WithError(err).Fatal("Gateway setup failed")
		}
		gateways.Add(gateway.NewWorker(cfg.QueueFor(medium), q, transport, base, m))
	}
	gateways.Start(ctx)

	// Kafka ingest is optional; events can also arrive over HTTP.
	var consumer *kafka.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		consumer, err = kafka.NewConsumer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, svc, base, m)
		if err != nil {
			logger.WithError(err).Fatal("Kafka setup failed")
		}
		consumer.Start(&wg)
	}

	handler := api.NewHandler(svc, dbConn, dbConn, sockets, base)
	srv := &http.Server{
		Addr:              cfg.API.Port,
		Handler:           api.NewRouter(handler, base, m, api.Config{BasePath: cfg.API.BasePath}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API run failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("API shutdown failed")
	}
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.WithError(err).Warn("Kafka consumer close failed")
		}
	}
	svc.Stop()
	if err := gateways.Stop(); err != nil {
		logger.WithError(err).Warn("Gateway stopped with error")
	}
	wg.Wait()
	logger.Info("Service stopped")
}
