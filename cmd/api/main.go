package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/httpx"
	kafkax "github.com/fundedgiants/fundedgiants-web-18-sub000/internal/kafka"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/payments"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/postgres"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/rates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka, one producer per topic
	var producers []*kafkax.Producer
	for _, topic := range []string{orders.TopicOrderCreated, orders.TopicPaymentSucceeded, orders.TopicPaymentFailed} {
		p := kafkax.NewProducer(cfg.KafkaBrokers, topic, 1024)
		p.Start(ctx)
		producers = append(producers, p)
	}
	bus := kafkax.NewBus(producers...)

	// Repos & services
	orderRepo := &orders.Repo{DB: db}
	affiliateRepo := &affiliates.Repo{DB: db}
	rateRepo := &rates.Repo{DB: db, Redis: rdb}
	statusCache := &redisx.StatusCache{RDB: rdb}

	registry := payments.NewRegistryFromConfig(cfg, rateRepo, payments.NewHTTPClient())
	svc := &payments.Service{
		Registry:   registry,
		Orders:     orderRepo,
		Affiliates: affiliateRepo,
		Events:     bus,
		Deliveries: &redisx.Markers{
			RDB:    rdb,
			Format: redisx.KeyWebhookDelivery,
			TTL:    redisx.TTLWebhookDelivery,
		},
		Cache:       statusCache,
		ServiceName: cfg.ServiceName,
	}
	if cfg.WebhookStrict {
		log.Printf("webhook strict mode: deliveries without a configured secret are refused")
	}

	router := httpx.NewRouter(cfg.AdminToken,
		&httpx.PaymentsHandler{Service: svc, Providers: registry},
		&httpx.OrdersHandler{Repo: orderRepo, Cache: statusCache},
		&httpx.AffiliatesHandler{Repo: affiliateRepo},
		&httpx.RatesHandler{Repo: rateRepo},
	)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Printf("HTTP listening at %s (providers: %v)", cfg.HTTPAddr, registry.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	bus.Close() // flush queued events
	cancel()
}
