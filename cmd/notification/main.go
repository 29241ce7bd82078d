package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"

	"github.com/careerlink/notifications/internal/config"
	"github.com/careerlink/notifications/internal/directory"
	"github.com/careerlink/notifications/internal/feed"
	"github.com/careerlink/notifications/internal/handler"
	"github.com/careerlink/notifications/internal/kafka"
	"github.com/careerlink/notifications/internal/logger"
	"github.com/careerlink/notifications/internal/mailer"
	"github.com/careerlink/notifications/internal/metrics"
	"github.com/careerlink/notifications/internal/router"
	"github.com/careerlink/notifications/internal/service"
	"github.com/careerlink/notifications/internal/store"
	"github.com/careerlink/notifications/pkg/observability"
)

const serviceName = "notification-service"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	l := logger.NewLogger()
	slog.SetDefault(l)

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- OpenTelemetry tracing ----
	if endpoint := os.Getenv("OTEL_COLLECTOR_ENDPOINT"); endpoint != "" {
		_, tracerShutdown, err := observability.NewTracerProvider(ctx, serviceName, endpoint, l)
		if err != nil {
			l.Error("Failed to initialize TracerProvider", slog.Any("error", err))
			os.Exit(1)
		}
		defer tracerShutdown()
	}

	// ---- Storage ----
	db, err := store.ConnectPostgres(cfg.DB)
	if err != nil {
		l.Error("failed to connect to postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := store.InitSchema(db); err != nil {
		l.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}
	notifStore := store.NewPostgresStore(db)

	// ---- Kafka change producer ----
	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_1_0_0
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal

	asyncProducer, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		l.Error("failed to create Kafka producer", slog.Any("error", err))
		os.Exit(1)
	}

	var producerWG sync.WaitGroup
	changeProducer := kafka.NewProducer(asyncProducer, cfg.Kafka.ChangeTopic, l, &producerWG)
	changeProducer.Start(ctx)
	defer changeProducer.Close(ctx)

	// ---- Services ----
	notifSvc := service.NewNotificationService(notifStore, changeProducer, l)
	healthSvc := service.NewHealthService(notifStore, l)

	smtpMailer, err := mailer.NewSMTPMailer(cfg.SMTP, l)
	if err != nil {
		l.Error("failed to create mailer", slog.Any("error", err))
		os.Exit(1)
	}
	resolver := directory.NewClient(cfg.DirectoryURL, l)
	dispatchSvc := service.NewDispatchService(
		notifStore,
		resolver,
		smtpMailer,
		changeProducer,
		cfg.Dispatch.WorkerLimit,
		cfg.Dispatch.Interval,
		cfg.Dispatch.BatchSize,
		l,
	)

	// ---- HTTP ----
	liveFeed := feed.New(cfg.Kafka, l)
	notifHandler := handler.NewNotificationHandler(notifSvc, l)
	streamHandler := handler.NewStreamHandler(notifSvc, liveFeed, l)
	healthHandler := handler.NewHealthHandler(healthSvc, l)

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router.NewRouter(notifHandler, streamHandler, healthHandler, cfg.App.JWTSecret),
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := dispatchSvc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error("dispatch worker stopped with error", slog.Any("error", err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	// Wait for a termination signal from the OS.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	l.Info("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("HTTP server shutdown failed", slog.Any("error", err))
	}

	cancel()
	wg.Wait()
	l.Info("Service shut down gracefully")
}
