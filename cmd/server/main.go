package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"

	"lights-watch/internal/cache"
	"lights-watch/internal/config"
	"lights-watch/internal/handlers"
	"lights-watch/internal/mq"
	"lights-watch/internal/outage"
	"lights-watch/internal/probe"
	"lights-watch/internal/reconcile"
	"lights-watch/internal/store"
)

// storeCacheTTL is the read-cache window for subscriber lookups.
const storeCacheTTL = 15 * time.Second

func main() {
	// Load .env if present.
	_ = godotenv.Load()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Database ---
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database connected and migrated")

	cachedStore := store.NewCached(db, storeCacheTTL)

	// --- Redis ---
	liveness, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer liveness.Close()
	log.Println("redis connected")

	// --- RabbitMQ ---
	mqPublisher, err := mq.NewPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("rabbitmq publisher: %v", err)
	}
	defer mqPublisher.Close()
	log.Println("rabbitmq connected")

	notifier := mq.NewStatusNotifier(mqPublisher)

	// --- Outage summaries ---
	outageClient := outage.NewClient(cfg.OutageServiceURL)
	summaries := outage.NewCache(outageClient, time.Duration(cfg.OutageCacheWindow)*time.Second)

	// --- Reconciler + scheduler ---
	rec := reconcile.New(cachedStore, liveness, summaries, notifier,
		cfg.LivenessTimeout, cfg.OutageCheckInterval, cfg.EvalConcurrency)
	scheduler := reconcile.NewScheduler(rec, cfg.EvalInterval)
	go scheduler.Start(ctx)

	// --- ICMP prober ---
	prober := probe.NewChecker(cachedStore, rec)
	go prober.Start(ctx, cfg.ProbeInterval)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(cors.New())

	h := &handlers.Handlers{Store: cachedStore, Reconciler: rec, Scheduler: scheduler}
	api := app.Group("/api")
	api.Get("/ping/:token", h.Ping)
	api.Post("/evaluate", h.Evaluate)
	api.Get("/subscribers", h.GetSubscribers)

	// --- Graceful shutdown ---
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	log.Printf("server starting on :%s", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
