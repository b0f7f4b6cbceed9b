package app

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/foodstore/internal/health"
	"github.com/vladislavdragonenkov/foodstore/internal/messaging/kafka"
)

// localConfig: in-memory конфигурация на loopback-адресах.
func localConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverMemory
	cfg.HTTPAddr = freeAddr(t)
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	return cfg
}

// runInBackground запускает Run и возвращает функцию остановки, которая ждёт его завершения.
func runInBackground(t *testing.T, cfg Config) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("Run did not stop after cancel")
			return nil
		}
	}
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	stop := runInBackground(t, localConfig(t))
	time.Sleep(150 * time.Millisecond)

	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestRun_ServesHTTPAPI(t *testing.T) {
	cfg := localConfig(t)
	stop := runInBackground(t, cfg)
	waitServing(t, cfg.HTTPAddr)

	code, body := get(t, "http://"+cfg.HTTPAddr+"/api/v1/category/get-category")
	assert.Equal(t, 200, code, body)
	assert.Contains(t, body, `"categories"`)

	code, _ = get(t, "http://"+cfg.HTTPAddr+"/api/v1/food/food-count")
	assert.Equal(t, 200, code)

	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := localConfig(t)
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestRun_HTTPAddrInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := localConfig(t)
	cfg.HTTPAddr = busy.Addr().String()

	assert.Error(t, Run(context.Background(), cfg), "busy http address must fail Run")
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("FOOD_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("FOOD_POSTGRES_TEST_DSN is not set")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer deps.close()

	assert.NotNil(t, deps.foods)
	assert.NotNil(t, deps.categories)
	assert.NotNil(t, deps.orders)
	assert.NotNil(t, deps.outbox)
	assert.NotNil(t, deps.idempotency)
	assert.Equal(t, healthcheck.StatusHealthy, deps.storageChecker.Check(context.Background()).Status)
}

func TestInitKafkaProducer(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer(nil, logger)
	assert.NoError(t, err)
	assert.Nil(t, producer, "no brokers means no producer")

	producer, err = initKafkaProducer([]string{"127.0.0.1:1"}, logger)
	if err == nil {
		closeKafka(producer, logger)
		t.Fatal("expected error for unreachable broker")
	}
	assert.Nil(t, producer)

	closeKafka(nil, logger)
}

func TestCloseKafka_LiveBroker(t *testing.T) {
	brokers := strings.TrimSpace(os.Getenv("FOOD_KAFKA_TEST_BROKERS"))
	if brokers == "" {
		t.Skip("FOOD_KAFKA_TEST_BROKERS is not set")
	}

	producer, err := kafka.NewProducer(strings.Split(brokers, ","))
	require.NoError(t, err)
	closeKafka(producer, log.WithField("test", "kafka-close"))
}
