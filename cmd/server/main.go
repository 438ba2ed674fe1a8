package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"ticketportal/internal/config"
	"ticketportal/internal/monitor/zabbix"
	"ticketportal/internal/publisher"
	"ticketportal/internal/scheduler"
	"ticketportal/internal/server"
	"ticketportal/internal/service"
	"ticketportal/internal/source/clickup"
	"ticketportal/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	ticketStore := postgres.NewTicketStore(db, logger)
	attachmentStore := postgres.NewAttachmentStore(db, logger)
	syncLogStore := postgres.NewSyncLogStore(db)

	source := clickup.New(clickup.Config{
		BaseURL:           cfg.ClickUp.BaseURL,
		Token:             cfg.ClickUp.Token,
		Timeout:           cfg.ClickUp.Timeout,
		MaxAttempts:       cfg.ClickUp.Retry.MaxAttempts,
		InitialBackoff:    cfg.ClickUp.Retry.InitialBackoff,
		MaxBackoff:        cfg.ClickUp.Retry.MaxBackoff,
		DefaultRetryAfter: cfg.ClickUp.Retry.DefaultRetryAfter,
	}, logger)

	var events service.Publisher
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		events = rabbitMQ
	}

	syncService := service.NewSyncService(
		source,
		ticketStore,
		syncLogStore,
		events,
		logger,
		cfg.ClickUp.Lists(),
		cfg.Sync,
	)
	ticketService := service.NewTicketService(
		source,
		ticketStore,
		attachmentStore,
		syncService,
		logger,
	)

	var monitor *zabbix.Client
	if cfg.Zabbix.Enabled() {
		monitor = zabbix.New(zabbix.Config{
			URL:   cfg.Zabbix.URL,
			Token: cfg.Zabbix.Token,
		}, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sync.CheckInterval > 0 {
		sched := scheduler.NewScheduler(syncService, cfg.Sync.CheckInterval, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	srv := server.New(syncService, ticketService, monitor, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	logger.Info("starting ticket portal",
		"addr", cfg.Server.Addr,
		"lists", len(cfg.ClickUp.Lists()),
		"monitoring", monitor != nil,
	)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
