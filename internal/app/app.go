package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/foodstore/internal/health"
	"github.com/vladislavdragonenkov/foodstore/internal/httpapi"
	"github.com/vladislavdragonenkov/foodstore/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodstore/internal/metrics"
	"github.com/vladislavdragonenkov/foodstore/internal/service/catalog"
	"github.com/vladislavdragonenkov/foodstore/internal/service/checkout"
	"github.com/vladislavdragonenkov/foodstore/internal/service/idempotency"
	"github.com/vladislavdragonenkov/foodstore/internal/service/outbox"
	"github.com/vladislavdragonenkov/foodstore/internal/telemetry"
	"github.com/vladislavdragonenkov/foodstore/internal/version"
)

const (
	serviceName     = "foodstore"
	shutdownTimeout = 5 * time.Second
)

// Run поднимает HTTP API, gRPC health, сервер метрик и фоновые воркеры.
// Возвращает ctx.Err() после штатной остановки по отмене контекста.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := log.WithField("component", "app")

	shutdownTracing, err := telemetry.Setup(telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Exporter:       cfg.TracingExporter,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("failed to flush traces")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	gateway, err := newPaymentGateway(cfg, logger)
	if err != nil {
		return err
	}

	// Без Kafka сервис работает, но события заказов не публикуются.
	producer, err := initKafkaProducer(cfg.kafkaBrokers(), logger)
	if err != nil {
		logger.WithError(err).Warn("kafka недоступна, события заказов остаются в outbox")
	}
	defer closeKafka(producer, logger)

	catalogOpts := []catalog.Option{
		catalog.WithLogger(logger.WithField("layer", "catalog")),
		catalog.WithMetrics(metrics.NewCatalogMetrics()),
	}
	if deps.countCache != nil {
		catalogOpts = append(catalogOpts, catalog.WithCountCache(deps.countCache))
	}
	catalogSvc := catalog.NewService(deps.foods, deps.categories, catalogOpts...)

	checkoutMetrics := metrics.NewCheckoutMetrics()
	checkoutOpts := []checkout.Option{
		checkout.WithLogger(logger.WithField("layer", "checkout")),
		checkout.WithMetrics(checkoutMetrics),
	}
	outboxWorker := newOutboxWorker(cfg, deps, producer, logger)
	if outboxWorker != nil {
		checkoutOpts = append(checkoutOpts, checkout.WithOutbox(deps.outbox, outboxWorker))
	}
	checkoutSvc := checkout.NewService(deps.orders, gateway, checkoutOpts...)

	cleanupWorker := idempotency.NewCleanupWorker(deps.idempotency,
		idempotency.WithLogger(logger.WithField("layer", "idempotency")),
		idempotency.WithMetrics(metrics.NewIdempotencyMetrics()),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	router := httpapi.NewRouter(httpapi.Config{
		FoodPrefix:     cfg.apiPrefix("food"),
		CategoryPrefix: cfg.apiPrefix("category"),
		AuthPrefix:     cfg.apiPrefix("auth"),
		PaymentRPS:     cfg.PaymentRPS,
		PaymentBurst:   cfg.PaymentBurst,
	}, httpapi.Deps{
		Catalog:       catalogSvc,
		Checkout:      checkoutSvc,
		Idempotency:   deps.idempotency,
		ReplayMetrics: checkoutMetrics,
		Metrics:       metrics.NewHTTPMetrics(),
		Logger:        logger.WithField("layer", "http"),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return err
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if deps.cacheCheck != nil {
		healthHandler.RegisterChecker("count_cache", deps.cacheCheck)
	}

	grpcServer, healthServer := newGRPCServer(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	metricsSrv := startMetricsServer(gctx, cfg.MetricsAddr, logger, healthHandler)

	g.Go(func() error {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	if outboxWorker != nil {
		g.Go(func() error {
			outboxWorker.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		cleanupWorker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("получен сигнал остановки, останавливаем серверы")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(httpSrv, logger)
		stopGRPC(grpcServer, logger)
		shutdownHTTP(metricsSrv, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// newOutboxWorker возвращает nil, если публиковать события некуда.
func newOutboxWorker(cfg Config, deps *runtimeDependencies, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	if producer == nil {
		logger.Info("kafka не настроена, события заказов не публикуются")
		return nil
	}
	topic := cfg.KafkaTopic
	if topic == "" {
		topic = kafka.TopicOrderEvents
	}
	return outbox.NewWorker(deps.outbox, kafka.NewOutboxPublisher(producer, topic),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithMetrics(metrics.NewOutboxMetrics()),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
}

// newGRPCServer создаёт gRPC сервер со стандартным health-сервисом и reflection.
func newGRPCServer(logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	return grpcServer, healthServer
}

// stopGRPC ждёт завершения активных вызовов, но не дольше shutdownTimeout.
func stopGRPC(srv *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		srv.Stop()
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
