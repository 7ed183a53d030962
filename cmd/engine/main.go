package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"reserva/internal/audit"
	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/events"
	"reserva/internal/lock"
	"reserva/internal/logging"
	"reserva/internal/metrics"
	"reserva/internal/notify"
	"reserva/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// The engine daemon runs the autonomous side of the booking lifecycle:
// expiry reconciliation, notification dispatch and metrics. Reservation
// operations themselves are the library surface (internal/service) driven
// by the embedding application.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, catalog, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, catalog, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics.Register()
	startMetricsServer(ctx, cfg.Monitoring, &logger)

	// Доставка уведомлений: redis очередь, retry, rate limit
	retryPolicy := worker.RetryPolicy{
		MaxRetries:    cfg.Notifications.MaxRetries,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
	dispatcher := notify.NewDispatcher(
		notify.NewLogSink(&logger), redisClient, retryPolicy,
		cfg.Notifications.RatePerSecond, cfg.Notifications.RateBurst,
		cfg.Notifications.QueueSize, &logger,
	)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	eventBus := events.NewEventBus()
	subscribeLifecycleEvents(ctx, eventBus, audit.NewStoreRecorder(db), &logger)

	reconciler := worker.NewReconciler(db, db, dispatcher, eventBus, cfg.Expiry.Interval(), &logger)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	logger.Info().Msg("booking engine started")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, *config.Catalog, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "engine-main").Logger()

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}
	catalog, err := config.LoadCatalog(catalogPath)
	if err != nil {
		logger.Error().Err(err).Msgf("Ошибка чтения %s", catalogPath)
		return nil, nil, zerolog.Logger{}, closer, err
	}

	return cfg, catalog, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
			return err
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, catalog *config.Catalog, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return nil, err
	}

	if err := db.SyncCatalog(context.Background(), catalog.Resources, catalog.Items); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации каталога")
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Warn().Msg("Redis not configured, notify queue runs in memory")
		return nil
	}

	client := lock.NewRedisClient(cfg.Redis)
	if err := lock.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
	}
	return client
}

func startMetricsServer(ctx context.Context, cfg config.MonitoringConfig, logger *zerolog.Logger) {
	if !cfg.PrometheusEnabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.PrometheusPort),
		Handler: mux,
	}

	go func() {
		logger.Info().Int("port", cfg.PrometheusPort).Msg("metrics server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}

// Переходы, сделанные фоновой сверкой, тоже попадают в аудит
func subscribeLifecycleEvents(ctx context.Context, bus *events.EventBus, recorder *audit.StoreRecorder, logger *zerolog.Logger) {
	bookingHandler := func(ev *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		if err := recorder.RecordUpdate(ctx, payload.UserID, "reservation", "booking", payload.BookingID, nil, payload); err != nil {
			logger.Error().Err(err).Str("booking_id", payload.BookingID).Msg("event bus: audit record")
		}
		return nil
	}

	invoiceHandler := func(ev *events.Event) error {
		var payload events.InvoiceEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		if err := recorder.RecordUpdate(ctx, payload.UserID, "billing", "invoice", payload.InvoiceID, nil, payload); err != nil {
			logger.Error().Err(err).Str("invoice_id", payload.InvoiceID).Msg("event bus: audit record")
		}
		return nil
	}

	bus.Subscribe(events.EventBookingExpired, bookingHandler)
	bus.Subscribe(events.EventBookingCancelled, bookingHandler)
	bus.Subscribe(events.EventInvoiceOverdue, invoiceHandler)
	bus.Subscribe(events.EventInvoiceCancelled, invoiceHandler)
}
