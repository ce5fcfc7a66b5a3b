package main

import (
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/notification"
	"github.com/example/ec-storefront/pkg/sigctx"
)

func main() {
	fs := pflag.NewFlagSet("notifier", pflag.ExitOnError)
	configFile := config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[Notifier] %v", err)
	}
	if !cfg.KafkaEnabled() {
		log.Fatal("[Notifier] Kafka brokers are required (KAFKA_BROKERS)")
	}

	ctx, cancel := sigctx.NotifyContext()
	defer cancel()

	log.Println("[Notifier] ========================================")
	log.Println("[Notifier] EC Storefront - Email Notification Service")
	log.Println("[Notifier] ========================================")
	log.Printf("[Notifier] Kafka: %v", cfg.Kafka.Brokers)
	log.Printf("[Notifier] Topic: %s", cfg.Kafka.Topic)
	log.Printf("[Notifier] Group: %s", cfg.Kafka.ConsumerGroup)
	log.Printf("[Notifier] SMTP: %s:%s", cfg.SMTP.Host, cfg.SMTP.Port)
	log.Printf("[Notifier] From: %s", cfg.SMTP.From)

	// Remembers which orders were already confirmed across redeliveries.
	backing, err := store.Open(ctx, cfg.Storage.StoreOptions())
	if err != nil {
		log.Fatalf("[Notifier] Failed to open %s store: %v", cfg.Storage.Driver, err)
	}
	defer backing.Close()
	go backing.RunJanitor(ctx)

	emailSvc := email.NewService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From)
	handler := notification.NewHandler(emailSvc, backing.KV)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup)
	defer consumer.Close()

	log.Println("[Notifier] Starting event consumer...")
	if err := consumer.Consume(ctx, handler.HandleMessage); err != nil && ctx.Err() == nil {
		log.Printf("[Notifier] Consumer error: %v", err)
	}
	log.Println("[Notifier] Shutting down...")
}
