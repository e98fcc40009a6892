package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hirelink/booking-core/internal/app"
	"github.com/hirelink/booking-core/internal/auth"
	"github.com/hirelink/booking-core/internal/config"
	"github.com/hirelink/booking-core/internal/controller/rest"
	"github.com/hirelink/booking-core/internal/events"
	"github.com/hirelink/booking-core/internal/gateway"
	"github.com/hirelink/booking-core/internal/notify"
	"github.com/hirelink/booking-core/internal/obs"
	"github.com/hirelink/booking-core/internal/repository"
	"github.com/hirelink/booking-core/internal/service"
	"github.com/hirelink/booking-core/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	serviceName = "hirelink-booking"
	version     = "0.1.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting booking service",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
		zap.Bool("env_file", cfg.EnvFileLoaded),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, version, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("Failed to shut down tracer", zap.Error(err))
		}
	}()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, migrations.FS, ".", logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator", zap.Error(err))
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create event publisher", zap.Error(err))
	}
	defer publisher.Close()

	store := repository.NewStore(pool)
	clock := service.SystemClock{}
	numbers := service.RandomNumbers{}
	gw := gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	bookings := service.NewBookingService(store, clock, numbers, publisher, logger)
	payments := service.NewPaymentService(store, gw, clock, numbers, publisher, cfg.PaymentCurrency, logger)
	reviews := service.NewReviewService(store, clock, publisher, logger)

	scheduler := app.NewScheduler(payments, cfg.PaymentExpiryInterval, cfg.PaymentOrderTTL, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	router := rest.NewRouter(rest.RouterConfig{
		ServiceName: serviceName,
		Tokens:      auth.NewTokens(cfg.JWTSecret),
		Handler:     rest.NewHandler(bookings, reviews, payments, time.Now, logger),
		DB:          pool,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Booking service started", zap.String("addr", cfg.HTTPAddr))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newPublisher builds the broker publisher and adds the Telegram ops notifier
// when a token and chat are configured.
func newPublisher(cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	var publishers events.Fanout

	switch cfg.EventsBroker {
	case config.BrokerKafka:
		p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	case config.BrokerRabbitMQ:
		p, err := events.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, p)
	}

	if cfg.TelegramEnabled() {
		n, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramOpsChatID, logger)
		if err != nil {
			publishers.Close()
			return nil, err
		}
		publishers = append(publishers, n)
	}

	switch len(publishers) {
	case 0:
		return events.Nop{}, nil
	case 1:
		return publishers[0], nil
	}
	return publishers, nil
}
