package app

import (
	"strings"
	"time"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

const (
	// StorageDriverMemory хранит состояние в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres использует PostgreSQL.
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса предложений.
type Config struct {
	GRPCAddr    string
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers — список через запятую; пусто означает публикацию в лог.
	KafkaBrokers  string
	KafkaClientID string

	OfferNumberPrefix string
	StockLocation     string
	ReservationTTL    time.Duration
	PDFFreshness      time.Duration
	PublicBaseURL     string
	// NotifyEvents — события, о которых клиент уведомляется по умолчанию.
	NotifyEvents string
	// CORSAllowedOrigins — список через запятую; пусто разрешает любой origin.
	CORSAllowedOrigins string

	AcceptanceTokenSecret string
	AcceptanceTokenTTL    time.Duration
	AdminTokenSecret      string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	OutboxMaxAge       time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// InventoryURL — адрес внешнего склада; пусто включает склад в памяти.
	InventoryURL             string
	InventoryMaxAttempts     int
	InventoryBreakerFailures int
	InventoryBreakerReset    time.Duration
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		KafkaClientID: "offer-service",

		OfferNumberPrefix: domain.DefaultOfferNumberPrefix,
		StockLocation:     "default",
		ReservationTTL:    7 * 24 * time.Hour,
		PDFFreshness:      24 * time.Hour,
		PublicBaseURL:     "http://localhost:8080",
		NotifyEvents:      "activated,accepted,completed,cancelled",

		AcceptanceTokenTTL: 14 * 24 * time.Hour,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,
		OutboxMaxAge:       5 * time.Minute,

		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		InventoryMaxAttempts:     3,
		InventoryBreakerFailures: 5,
		InventoryBreakerReset:    30 * time.Second,
	}
}

// NotificationPolicy строит системные настройки уведомлений из NotifyEvents.
// Неизвестные события пропускаются.
func (c Config) NotificationPolicy() domain.NotificationPolicy {
	policy := domain.NotificationPolicy{
		domain.EventCreated:   false,
		domain.EventActivated: false,
		domain.EventAccepted:  false,
		domain.EventCompleted: false,
		domain.EventCancelled: false,
	}
	for _, raw := range splitList(c.NotifyEvents) {
		event := domain.OfferEvent(strings.ToLower(raw))
		if event.Valid() {
			policy[event] = true
		}
	}
	return policy
}

// AllowedOrigins возвращает CORS origins публичного API.
func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// Brokers возвращает адреса Kafka.
func (c Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
