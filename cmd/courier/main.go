package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"courier/internal/cache"
	"courier/internal/config"
	"courier/internal/crash"
	"courier/internal/events"
	"courier/internal/handler"
	"courier/internal/logger"
	"courier/internal/service"
	"courier/internal/storage"
	"courier/internal/ws"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database connection established")

	db := storage.GetDB()
	users := storage.NewUserRepository(db)
	messages := storage.NewMessageRepository(db)
	history := storage.NewHistoryRepository(db)
	notifications := storage.NewNotificationRepository(db)
	conversations := storage.NewConversationRepository(db)

	for _, migrate := range []func() error{
		users.MigrateTable,
		messages.MigrateTable,
		history.MigrateTable,
		notifications.MigrateTable,
		conversations.MigrateTable,
	} {
		if err := migrate(); err != nil {
			log.Fatalf("Failed to migrate tables: %v", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		log.Println("Redis connection established")
	}
	hub := ws.NewHub(rdb)

	bus := events.NewBus()
	userService := service.NewUserService(users, bus)
	messageService := service.NewMessageService(db, messages, history, users, conversations, bus)
	notificationService := service.NewNotificationService(notifications, hub)
	conversationService := service.NewConversationService(conversations, messages, users, bus)

	hooks := service.NewLifecycleHooks(notificationService, messageService, messages, history, users, conversations, cfg.Server.SystemUser)
	hooks.Register(bus)

	pageCache := cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, cfg.Cache.MaxEntries)
	crash.SafeGoroutine("cache-sweeper", func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			pageCache.Sweep()
		}
	})

	h := handler.New(cfg, userService, messageService, notificationService, conversationService, pageCache, hub)
	server := handler.NewServer(h)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, os.Kill, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal: %v, shutting down...", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Server gracefully stopped")
}
