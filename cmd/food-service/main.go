package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodstore/internal/app"
	"github.com/vladislavdragonenkov/foodstore/internal/version"
)

// setupLogger: неизвестный уровень превращается в info.
func setupLogger(level string) log.Level {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	return lvl
}

func main() {
	cfg, cfgErr := app.LoadConfig()
	setupLogger(cfg.LogLevel)

	logger := log.WithFields(version.Current().Fields())
	if cfgErr != nil {
		logger.WithError(cfgErr).Fatal("конфигурация FoodService не прошла проверку")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{
		"http":    cfg.HTTPAddr,
		"grpc":    cfg.GRPCAddr,
		"metrics": cfg.MetricsAddr,
		"storage": cfg.StorageDriver,
		"gateway": cfg.PaymentProvider,
	}).Info("FoodService стартует")

	err := app.Run(ctx, cfg)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("FoodService остановлен")
	default:
		stop()
		logger.WithError(err).Fatal("FoodService завершился с ошибкой")
	}
}
