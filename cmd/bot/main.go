package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lights-watch/internal/bot"
	"lights-watch/internal/config"
	"lights-watch/internal/mq"
	"lights-watch/internal/notify"
	"lights-watch/internal/outage"
	"lights-watch/internal/store"
)

// storeCacheTTL is the read-cache window for subscriber lookups.
const storeCacheTTL = 15 * time.Second

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN is required. Get one from @BotFather on Telegram.")
	}

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

	// --- RabbitMQ ---
	mqConsumer, err := mq.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("rabbitmq consumer: %v", err)
	}
	defer mqConsumer.Close()
	log.Println("rabbitmq connected")

	// --- Outage summaries (for /check and the address wizard) ---
	outageClient := outage.NewClient(cfg.OutageServiceURL)
	summaries := outage.NewCache(outageClient, time.Duration(cfg.OutageCacheWindow)*time.Second)

	// --- Telegram Bot ---
	tgBot, err := bot.New(cfg.BotToken, cachedStore, summaries, outageClient, cfg.BaseURL)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	go tgBot.Start()
	defer tgBot.Stop()
	log.Println("telegram bot started")

	// --- Dispatcher ---
	messenger := bot.NewMessenger(tgBot.TeleBot())
	dispatcher := notify.NewDispatcher(messenger, cachedStore)
	go dispatcher.Run(ctx)

	// --- RabbitMQ listener ---
	l := newListener(mqConsumer, dispatcher)
	go l.start(ctx)
	log.Println("rabbitmq listener started")

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down bot service...")
	cancel()
}
