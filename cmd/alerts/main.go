package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/alerts"
	"github.com/gasvida/gas-orders/internal/config"
	kafkax "github.com/gasvida/gas-orders/internal/kafka"
	"github.com/gasvida/gas-orders/internal/orders"
	"github.com/gasvida/gas-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pLow := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 1024, log)
	pLow.Start(ctx)

	svc := &alerts.Service{
		Markers:     &alerts.RedisMarkers{C: rdb},
		Producer:    pLow,
		ServiceName: cfg.ServiceName + "-alerts",
		Log:         log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.AlertsGroup, orders.TopicStockAdjusted, cfg.AlertsWorkers, log)

	go func() {
		log.Info("alerts consumer started",
			zap.String("group", cfg.AlertsGroup),
			zap.Int("workers", cfg.AlertsWorkers))
		if err := cons.Start(ctx, svc.HandleStockAdjusted); err != nil {
			log.Warn("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer")
	cancel()
	time.Sleep(500 * time.Millisecond)
	pLow.Close()
	pLow.WaitClosed()
}
