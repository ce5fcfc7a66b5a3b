package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/ec-storefront/internal/addressbook"
	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/backend"
	"github.com/example/ec-storefront/internal/cartsync"
	"github.com/example/ec-storefront/internal/catalog"
	"github.com/example/ec-storefront/internal/checkout"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/events"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/session"
	"github.com/example/ec-storefront/pkg/sigctx"
)

func main() {
	fs := pflag.NewFlagSet("storefront", pflag.ExitOnError)
	configFile := config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("[API] %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[API] Invalid configuration: %v", err)
	}
	policy, _ := cfg.Money.Policy()

	ctx, cancel := sigctx.NotifyContext()
	defer cancel()

	log.Println("[API] ========================================")
	log.Println("[API] EC Storefront")
	log.Println("[API] ========================================")
	log.Printf("[API] Backend: %s", cfg.Backend.BaseURL)
	log.Printf("[API] Storage: %s", cfg.Storage.Driver)

	backing, err := store.Open(ctx, cfg.Storage.StoreOptions())
	if err != nil {
		log.Fatalf("[API] Failed to open %s store: %v", cfg.Storage.Driver, err)
	}
	defer backing.Close()

	client, err := backend.New(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		Timeout:       cfg.Backend.Timeout,
		RetryAttempts: cfg.Backend.RetryAttempts,
		RetryBackoff:  cfg.Backend.RetryBackoff,
	})
	if err != nil {
		log.Fatalf("[API] Failed to create backend client: %v", err)
	}

	bus := events.NewBus()

	// Request handlers publish until the server has shut down, so the
	// forwarder outlives ctx.
	forwardCtx, stopForwarder := context.WithCancel(context.Background())
	defer stopForwarder()

	var wg sync.WaitGroup
	if cfg.KafkaEnabled() {
		log.Printf("[API] Kafka: %v", cfg.Kafka.Brokers)
		log.Printf("[API] Topic: %s", cfg.Kafka.Topic)

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()

		forwarder := events.NewKafkaForwarder(producer, cfg.Kafka.ForwardBuffer)
		bus.Subscribe(forwarder.Handle)
		wg.Add(1)
		go func() {
			defer wg.Done()
			forwarder.Run(forwardCtx)
		}()
	} else {
		log.Println("[API] Kafka disabled, events stay in process")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		backing.RunJanitor(ctx)
	}()

	products := catalog.NewService(client, store.NewJSONCache(backing.KV, "catalog:", cfg.Catalog.CacheTTL))
	carts := cartsync.NewSynchronizer(client, cartsync.NewGuestStore(backing.KV, cfg.Cart.GuestTTL), products, policy, bus)

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweepIdleCarts(ctx, carts, cfg.Cart.SweepInterval, cfg.Cart.IdleTimeout)
	}()

	closing := make(chan struct{})
	handlers := api.NewHandlers(api.Deps{
		JWT:       auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
		Accounts:  client,
		Sessions:  session.NewStore(backing.KV, cfg.Auth.SessionTTL),
		Carts:     carts,
		Catalog:   products,
		Checkout:  checkout.NewOrchestrator(client, carts, products, bus),
		Orders:    client,
		Addresses: addressbook.NewService(client),
		Events:    bus,
		Health:    backing.Ping,
		Closing:   closing,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(func() { close(closing) })

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[API] Shutting down...")

	shutdown(server, cfg.HTTP.ShutdownTimeout, stopForwarder)
	wg.Wait()
}

// shutdown waits for in-flight requests and only then runs after.
func shutdown(server *http.Server, timeout time.Duration, after func()) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[API] Shutdown error: %v", err)
	}
	after()
}

// sweepIdleCarts forgets in-memory cart state nobody touched for maxIdle.
func sweepIdleCarts(ctx context.Context, carts *cartsync.Synchronizer, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := carts.Sweep(maxIdle); n > 0 {
				log.Printf("[Cart] Swept %d idle carts", n)
			}
		}
	}
}
