package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/gasvida/gas-orders/internal/auth"
	"github.com/gasvida/gas-orders/internal/config"
	"github.com/gasvida/gas-orders/internal/httpx"
	kafkax "github.com/gasvida/gas-orders/internal/kafka"
	"github.com/gasvida/gas-orders/internal/orders"
	"github.com/gasvida/gas-orders/internal/postgres"
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

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	pCreated.Start(ctx)
	pStatus := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatusChanged, 1024, log)
	pStatus.Start(ctx)
	pStock := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockAdjusted, 1024, log)
	pStock.Start(ctx)

	store := &orders.PgStore{DB: db, Geo: &orders.PgGeography{DB: db}}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Store:      store,
		Redis:      rdb,
		PubCreated: pCreated,
		PubStatus:  pStatus,
		PubStock:   pStock,
		Log:        log,
		Service:    cfg.ServiceName,
	}
	ih := &httpx.InventoryHandler{
		Store:    store,
		PubStock: pStock,
		Log:      log,
		Service:  cfg.ServiceName,
	}
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		oh.Register(r)
		ih.Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inboxes so the loops flush, then wait for them to drain
	pCreated.Close()
	pStatus.Close()
	pStock.Close()
	cancel()
	pCreated.WaitClosed()
	pStatus.WaitClosed()
	pStock.WaitClosed()
}
