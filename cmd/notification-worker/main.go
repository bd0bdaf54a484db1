package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-registration/internal/config"
	"ms-registration/internal/kafka"
	"ms-registration/internal/logger"
	"ms-registration/internal/notification"
	"ms-registration/internal/notification/notif_api"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger("notification-worker")
	defer log.Close()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", "Failed to open Postgres: "+err.Error())
	}
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", "Failed to connect to Postgres: "+err.Error())
	}
	log.Info("DATABASE", "Postgres connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	svc := notification.NewService(bunDB, log)

	topics := []string{kafka.TopicRegistrationCreated, kafka.TopicRegistrationCancelled}
	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
		log.Warn("KAFKA", "Topic setup failed: "+err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range topics {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topic, cfg.Kafka.GroupID)
		wg.Add(1)
		go func(c *kafka.Consumer, topic string) {
			defer wg.Done()
			defer c.Close()
			log.Info("KAFKA", "Consuming topic "+topic)
			c.Start(ctx, svc.HandleRegistrationEvent)
		}(consumer, topic)
	}

	// --- Read API ---
	handler := notif_api.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users/{userId}/notifications", handler.Unread)
		r.Put("/notifications/{notificationId}/read", handler.MarkRead)
	})

	port := os.Getenv("NOTIFICATION_PORT")
	if port == "" {
		port = ":8082"
	}
	server := &http.Server{
		Addr:         port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Notification API on "+port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "HTTP error: "+err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("WORKER", "Shutdown signal received")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", "Forced shutdown: "+err.Error())
	}

	cancel()
	wg.Wait()
	log.Info("WORKER", "Notification worker shutdown complete")
}
