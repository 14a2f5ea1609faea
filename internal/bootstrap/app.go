package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/visitbooking/config"
	"github.com/Domenick1991/visitbooking/internal/cache"
	"github.com/Domenick1991/visitbooking/internal/email"
	"github.com/Domenick1991/visitbooking/internal/kafka"
	"github.com/Domenick1991/visitbooking/internal/payment"
	"github.com/Domenick1991/visitbooking/internal/receipt"
	"github.com/Domenick1991/visitbooking/internal/repository"
	"github.com/Domenick1991/visitbooking/internal/service/booking"
	"github.com/Domenick1991/visitbooking/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the wired booking service and the resources it owns.
type App struct {
	Service *booking.BookingService
	Pool    *pgxpool.Pool
	// Checks are reported by /health, keyed by dependency name.
	Checks map[string]HealthCheck

	closers []func() error
}

// Build connects to every backing service named in cfg and wires the
// booking service. Redis, Kafka and SMTP are optional.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	app := &App{Pool: pool, Checks: map[string]HealthCheck{"postgres": pool.Ping}}
	app.closers = append(app.closers, func() error { pool.Close(); return nil })

	minioClient, err := storage.NewMinioClient(storageConfig(cfg.Storage))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	gateway := payment.NewRazorpayClient(payment.Config{
		BaseURL:          cfg.Payment.BaseURL,
		KeyID:            cfg.Payment.KeyID,
		KeySecret:        cfg.Payment.KeySecret,
		Timeout:          cfg.Booking.GatewayTimeout(),
		BreakerThreshold: cfg.Payment.BreakerThreshold,
	})

	opts := []booking.BookingServiceOption{
		booking.WithLogger(log.Named("booking")),
		booking.WithCurrency(cfg.Booking.Currency),
		booking.WithTimeouts(cfg.Booking.GatewayTimeout(), cfg.Booking.StorageTimeout(), cfg.Booking.EmailTimeout()),
	}

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.ViewCacheTTL(), cfg.Booking.VerifyLockTTL())
		app.closers = append(app.closers, redisCache.Close)
		opts = append(opts, booking.WithCache(redisCache))
	} else {
		log.Warn("redis not configured, verification lock and view cache disabled")
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.BookingEventsTopic != "" {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log.Named("kafka"))
		app.closers = append(app.closers, producer.Close)
		app.Checks["kafka"] = producer.CheckConnection
		opts = append(opts, booking.WithEvents(producer, cfg.Kafka.BookingEventsTopic))
	}

	var notifier booking.Notifier
	if cfg.SMTP.Host != "" {
		dialer := email.NewDialer(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		notifier = email.NewDispatcher(dialer, cfg.SMTP.From, log.Named("email"))
	} else {
		log.Warn("smtp not configured, confirmation emails disabled")
	}

	app.Service = booking.NewBookingService(
		repository.NewBookingRepository(pool),
		repository.NewInstitutionRepository(pool),
		gateway,
		receipt.NewRenderer(receipt.WithCompression(true)),
		storage.NewReceiptStore(minioClient, storageConfig(cfg.Storage)),
		notifier,
		opts...,
	)
	return app, nil
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	return storage.Config{
		Endpoint:      cfg.Endpoint,
		Region:        cfg.Region,
		Bucket:        cfg.Bucket,
		AccessKey:     cfg.AccessKey,
		SecretKey:     cfg.SecretKey,
		UseSSL:        cfg.UseSSL,
		PublicBaseURL: cfg.PublicBaseURL,
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
