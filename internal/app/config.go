package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/foodstore/internal/service/payment"
	"github.com/vladislavdragonenkov/foodstore/internal/storage/postgres"
	"github.com/vladislavdragonenkov/foodstore/internal/telemetry"
)

const (
	// StorageDriverMemory хранит данные в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит данные в PostgreSQL.
	StorageDriverPostgres = "postgres"

	// PaymentProviderMock: встроенный mock шлюза для разработки.
	PaymentProviderMock = "mock"
	// PaymentProviderBraintree: Braintree GraphQL API.
	PaymentProviderBraintree = "braintree"

	configFileEnv = "FOOD_CONFIG_FILE"
)

// Config описывает настройки запуска приложения.
// Значения берутся из DefaultConfig, затем из YAML-файла, затем из переменных окружения.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	// APIPrefix: общий префикс маршрутов; пустая строка монтирует API в корень.
	APIPrefix string `yaml:"api_prefix"`
	LogLevel  string `yaml:"log_level"`

	StorageDriver       string `yaml:"storage_driver"`
	PostgresDSN         string `yaml:"postgres_dsn"`
	PostgresAutoMigrate bool   `yaml:"postgres_auto_migrate"`
	PostgresMaxConns    int    `yaml:"postgres_max_conns"`

	RedisAddr     string        `yaml:"redis_addr"`
	CountCacheTTL time.Duration `yaml:"count_cache_ttl"`

	// KafkaBrokers: список брокеров через запятую; пусто отключает публикацию событий.
	KafkaBrokers string `yaml:"kafka_brokers"`
	KafkaTopic   string `yaml:"kafka_topic"`

	PaymentProvider      string        `yaml:"payment_provider"`
	BraintreeMerchantID  string        `yaml:"braintree_merchant_id"`
	BraintreePublicKey   string        `yaml:"braintree_public_key"`
	BraintreePrivateKey  string        `yaml:"braintree_private_key"`
	BraintreeEnvironment string        `yaml:"braintree_environment"`
	BraintreeTimeout     time.Duration `yaml:"braintree_timeout"`
	PaymentRPS           float64       `yaml:"payment_rps"`
	PaymentBurst         int           `yaml:"payment_burst"`

	TracingExporter string `yaml:"tracing_exporter"`

	OutboxPollInterval          time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize             int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts           int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay            time.Duration `yaml:"outbox_retry_delay"`
	IdempotencyCleanupInterval  time.Duration `yaml:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `yaml:"idempotency_cleanup_batch_size"`
}

// DefaultConfig возвращает настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		APIPrefix:                   "/api/v1",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		PostgresMaxConns:            postgres.DefaultMaxConns,
		CountCacheTTL:               30 * time.Second,
		PaymentProvider:             PaymentProviderMock,
		BraintreeEnvironment:        payment.EnvironmentSandbox,
		BraintreeTimeout:            15 * time.Second,
		PaymentRPS:                  5,
		PaymentBurst:                10,
		TracingExporter:             telemetry.ExporterNone,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig собирает конфигурацию из файла FOOD_CONFIG_FILE и окружения.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	if path := strings.TrimSpace(os.Getenv(configFileEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// applyEnv переопределяет поля значениями переменных окружения.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	var errs []error
	parse := func(key string, apply func(string) error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := apply(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	duration := func(key string, dst *time.Duration) {
		parse(key, func(v string) (err error) {
			*dst, err = time.ParseDuration(v)
			return err
		})
	}
	integer := func(key string, dst *int) {
		parse(key, func(v string) (err error) {
			*dst, err = strconv.Atoi(v)
			return err
		})
	}

	str("FOOD_HTTP_ADDR", &cfg.HTTPAddr)
	str("FOOD_GRPC_ADDR", &cfg.GRPCAddr)
	str("FOOD_METRICS_ADDR", &cfg.MetricsAddr)
	str("FOOD_API_PREFIX", &cfg.APIPrefix)
	str("FOOD_LOG_LEVEL", &cfg.LogLevel)
	str("FOOD_STORAGE_DRIVER", &cfg.StorageDriver)
	str("FOOD_POSTGRES_DSN", &cfg.PostgresDSN)
	parse("FOOD_POSTGRES_AUTO_MIGRATE", func(v string) (err error) {
		cfg.PostgresAutoMigrate, err = strconv.ParseBool(v)
		return err
	})
	integer("FOOD_POSTGRES_MAX_CONNS", &cfg.PostgresMaxConns)
	str("FOOD_REDIS_ADDR", &cfg.RedisAddr)
	duration("FOOD_COUNT_CACHE_TTL", &cfg.CountCacheTTL)
	str("FOOD_KAFKA_BROKERS", &cfg.KafkaBrokers)
	str("FOOD_KAFKA_TOPIC", &cfg.KafkaTopic)
	str("FOOD_PAYMENT_PROVIDER", &cfg.PaymentProvider)
	str("BRAINTREE_MERCHANT_ID", &cfg.BraintreeMerchantID)
	str("BRAINTREE_PUBLIC_KEY", &cfg.BraintreePublicKey)
	str("BRAINTREE_PRIVATE_KEY", &cfg.BraintreePrivateKey)
	str("BRAINTREE_ENVIRONMENT", &cfg.BraintreeEnvironment)
	duration("BRAINTREE_TIMEOUT", &cfg.BraintreeTimeout)
	parse("FOOD_PAYMENT_RPS", func(v string) (err error) {
		cfg.PaymentRPS, err = strconv.ParseFloat(v, 64)
		return err
	})
	integer("FOOD_PAYMENT_BURST", &cfg.PaymentBurst)
	str("FOOD_TRACING_EXPORTER", &cfg.TracingExporter)
	duration("FOOD_OUTBOX_POLL_INTERVAL", &cfg.OutboxPollInterval)
	integer("FOOD_OUTBOX_BATCH_SIZE", &cfg.OutboxBatchSize)
	integer("FOOD_OUTBOX_MAX_ATTEMPTS", &cfg.OutboxMaxAttempts)
	duration("FOOD_OUTBOX_RETRY_DELAY", &cfg.OutboxRetryDelay)
	duration("FOOD_IDEMPOTENCY_CLEANUP_INTERVAL", &cfg.IdempotencyCleanupInterval)
	integer("FOOD_IDEMPOTENCY_CLEANUP_BATCH_SIZE", &cfg.IdempotencyCleanupBatchSize)

	return errors.Join(errs...)
}

// Validate проверяет согласованность настроек до старта зависимостей.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("http address is required"))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.PaymentProvider {
	case PaymentProviderMock:
	case PaymentProviderBraintree:
		if err := c.braintree().Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported payment provider %q", c.PaymentProvider))
	}

	switch strings.ToLower(c.TracingExporter) {
	case "", telemetry.ExporterNone, telemetry.ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("unsupported tracing exporter %q", c.TracingExporter))
	}

	if c.LogLevel != "" {
		if _, err := log.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	if c.PaymentRPS < 0 {
		errs = append(errs, errors.New("payment rps must be >= 0"))
	}

	return errors.Join(errs...)
}

func (c Config) braintree() payment.BraintreeConfig {
	return payment.BraintreeConfig{
		MerchantID:  c.BraintreeMerchantID,
		PublicKey:   c.BraintreePublicKey,
		PrivateKey:  c.BraintreePrivateKey,
		Environment: c.BraintreeEnvironment,
		Timeout:     c.BraintreeTimeout,
	}
}

// apiPrefix склеивает общий префикс и имя группы маршрутов.
func (c Config) apiPrefix(group string) string {
	base := strings.TrimRight(strings.TrimSpace(c.APIPrefix), "/")
	return base + "/" + group
}

func (c Config) kafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
