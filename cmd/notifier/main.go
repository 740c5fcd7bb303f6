package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/affiliates"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/config"
	kafkax "github.com/fundedgiants/fundedgiants-web-18-sub000/internal/kafka"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/notify"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/orders"
	"github.com/fundedgiants/fundedgiants-web-18-sub000/internal/postgres"
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
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	mailer := notify.NewResend(cfg.ResendAPIKey, cfg.EmailFrom)
	if !mailer.Enabled() {
		log.Printf("RESEND_API_KEY not set, emails will be skipped")
	}

	handler := &notify.Handler{
		Notifier: &notify.Notifier{
			Orders:     &orders.Repo{DB: db},
			Profiles:   &notify.ProfileRepo{DB: db},
			Affiliates: &affiliates.Repo{DB: db},
			Mailer:     mailer,
			CRM:        notify.NewWebhookCRM(cfg.CRMWebhookURL),
		},
		Done: &redisx.Markers{
			RDB:    rdb,
			Format: redisx.KeyNotified,
			TTL:    redisx.TTLNotified,
		},
		Locks: redisx.NewLocker(rdb),
	}

	// Dead-letter producer for messages that keep failing
	dlq := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicPaymentSucceededDLQ, 16)
	dlq.Start(ctx)
	defer dlq.WaitClosed()
	defer dlq.Close()

	// Consumer
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicPaymentSucceeded, cfg.NotifierWorkers)
	cons.MaxAttempts = cfg.NotifierMaxAttempts
	cons.DeadLetter = dlq

	go func() {
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d",
			cfg.NotifierGroup, orders.TopicPaymentSucceeded, cfg.NotifierWorkers)
		if err := cons.Start(ctx, handler.HandlePaymentSucceeded); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
