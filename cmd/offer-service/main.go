package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/offers/internal/app"
	"github.com/vladislavdragonenkov/offers/internal/version"
)

const (
	envLogLevel                    = "OFFERS_LOG_LEVEL"
	envGRPCAddr                    = "OFFERS_GRPC_ADDR"
	envHTTPAddr                    = "OFFERS_HTTP_ADDR"
	envMetricsAddr                 = "OFFERS_METRICS_ADDR"
	envStorageDriver               = "OFFERS_STORAGE_DRIVER"
	envPostgresDSN                 = "OFFERS_POSTGRES_DSN"
	envPostgresAutoMigrate         = "OFFERS_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers                = "OFFERS_KAFKA_BROKERS"
	envKafkaClientID               = "OFFERS_KAFKA_CLIENT_ID"
	envNumberPrefix                = "OFFERS_NUMBER_PREFIX"
	envStockLocation               = "OFFERS_STOCK_LOCATION"
	envReservationTTL              = "OFFERS_RESERVATION_TTL"
	envPDFFreshness                = "OFFERS_PDF_FRESHNESS"
	envPublicBaseURL               = "OFFERS_PUBLIC_BASE_URL"
	envNotifyEvents                = "OFFERS_NOTIFY_EVENTS"
	envCORSAllowedOrigins          = "OFFERS_CORS_ALLOWED_ORIGINS"
	envAcceptanceTokenSecret       = "OFFERS_ACCEPTANCE_TOKEN_SECRET"
	envAcceptanceTokenTTL          = "OFFERS_ACCEPTANCE_TOKEN_TTL"
	envAdminTokenSecret            = "OFFERS_ADMIN_TOKEN_SECRET"
	envOutboxPollInterval          = "OFFERS_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "OFFERS_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "OFFERS_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "OFFERS_OUTBOX_RETRY_DELAY"
	envOutboxMaxAge                = "OFFERS_OUTBOX_MAX_AGE"
	envIdempotencyCleanupInterval  = "OFFERS_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "OFFERS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envInventoryURL                = "OFFERS_INVENTORY_URL"
	envInventoryMaxAttempts        = "OFFERS_INVENTORY_MAX_ATTEMPTS"
	envInventoryBreakerFailures    = "OFFERS_INVENTORY_BREAKER_FAILURES"
	envInventoryBreakerReset       = "OFFERS_INVENTORY_BREAKER_RESET"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", envLogLevel, err)
	}
	log.SetLevel(level)
	return nil
}

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректные значения не роняют старт: остаётся значение по умолчанию и пишется предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	str := func(key string, dst *string) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			*dst = strings.TrimSpace(raw)
		}
	}
	boolean := func(key string, dst *bool) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := parseBool(raw)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = v
	}
	positiveInt := func(key string, dst *int) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := parseInt(raw, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = v
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		v, err := parseDuration(raw, valid, rule)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = v
	}
	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }

	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)

	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaClientID, &cfg.KafkaClientID)

	str(envNumberPrefix, &cfg.OfferNumberPrefix)
	str(envStockLocation, &cfg.StockLocation)
	duration(envReservationTTL, &cfg.ReservationTTL, positive, "must be > 0")
	duration(envPDFFreshness, &cfg.PDFFreshness, positive, "must be > 0")
	str(envPublicBaseURL, &cfg.PublicBaseURL)
	if raw, ok := lookup(envNotifyEvents); ok {
		// Пустое значение осознанно выключает уведомления.
		cfg.NotifyEvents = strings.TrimSpace(raw)
	}
	str(envCORSAllowedOrigins, &cfg.CORSAllowedOrigins)

	str(envAcceptanceTokenSecret, &cfg.AcceptanceTokenSecret)
	duration(envAcceptanceTokenTTL, &cfg.AcceptanceTokenTTL, positive, "must be > 0")
	str(envAdminTokenSecret, &cfg.AdminTokenSecret)

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	positiveInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	positiveInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	duration(envOutboxMaxAge, &cfg.OutboxMaxAge, positive, "must be > 0")

	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive, "must be > 0")
	positiveInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize)

	str(envInventoryURL, &cfg.InventoryURL)
	positiveInt(envInventoryMaxAttempts, &cfg.InventoryMaxAttempts)
	positiveInt(envInventoryBreakerFailures, &cfg.InventoryBreakerFailures)
	duration(envInventoryBreakerReset, &cfg.InventoryBreakerReset, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Warn("invalid log level, using info")
	}
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := version.Current()
	log.WithFields(log.Fields{
		"version":      build.Version,
		"commit":       build.Commit,
		"grpc_addr":    cfg.GRPCAddr,
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем OfferService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OfferService остановлен")
}
