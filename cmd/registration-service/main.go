package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-registration/internal/activity"
	"ms-registration/internal/auth"
	"ms-registration/internal/config"
	"ms-registration/internal/database/migrations"
	"ms-registration/internal/events"
	events_db "ms-registration/internal/events/db"
	"ms-registration/internal/events/event_api"
	"ms-registration/internal/kafka"
	"ms-registration/internal/ledger"
	ledger_db "ms-registration/internal/ledger/db"
	"ms-registration/internal/ledger/reg_api"
	rediswrap "ms-registration/internal/ledger/redis"
	"ms-registration/internal/logger"
	"ms-registration/internal/tickets/qr"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger("registration-service")
	defer log.Close()

	// --- PostgreSQL ---
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", "Failed to open Postgres: "+err.Error())
	}
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", "Failed to connect to Postgres: "+err.Error())
	}
	log.Info("DATABASE", "Postgres connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, os.Getenv("MIGRATIONS_DIR"))
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", "Migrations failed: "+err.Error())
	}
	defer runner.Close()

	// --- Redis ---
	redisClient, err := auth.InitializeRedis(cfg.Redis.Addr, log)
	if err != nil {
		log.Fatal("REDIS", "Failed to connect to Redis: "+err.Error())
	}
	defer redisClient.Close()
	submitLock := rediswrap.NewRedis(redisClient)

	// --- Kafka ---
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{kafka.TopicRegistrationCreated, kafka.TopicRegistrationCancelled}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", "Topic setup failed: "+err.Error())
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
	}

	// --- Services ---
	recorder := activity.NewRecorder(&activity.BunStore{Bun: bunDB}, log)
	defer recorder.Close()

	var qrGen ledger.QRGenerator
	if cfg.QR.SecretKey != "" {
		qrGen = qr.NewGenerator(cfg.QR.SecretKey)
	}

	var publisher ledger.KafkaPublisher
	if producer != nil {
		publisher = producer
	}

	ledgerSvc := ledger.NewService(&ledger_db.DB{Bun: bunDB}, submitLock, publisher, recorder, qrGen, log)
	ledgerHandler := reg_api.NewHandler(ledgerSvc, log)

	eventsSvc := events.NewService(&events_db.DB{Bun: bunDB}, log)
	eventsHandler := event_api.NewHandler(eventsSvc, log)

	// --- Router ---
	r := chi.NewRouter()
	if cfg.Auth.OIDCIssuer != "" {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
	} else {
		log.Warn("AUTH", "OIDC_ISSUER not set, running without authentication")
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/registrations/register", ledgerHandler.Register)
		r.Post("/registrations/cancel", ledgerHandler.Cancel)
		r.Get("/users/{userId}/tickets", ledgerHandler.MyTickets)

		r.Post("/events", eventsHandler.CreateEvent)
		r.Get("/events", eventsHandler.ListEvents)
		r.Get("/events/{eventId}", eventsHandler.GetEvent)
		r.Put("/events/{eventId}/status", eventsHandler.Transition)
		r.Put("/events/{eventId}/publish", eventsHandler.Publish)
		r.Post("/events/{eventId}/ticket-types", eventsHandler.CreateTicketType)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Registration service on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "HTTP error: "+err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("SERVER", "Shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", "Forced shutdown: "+err.Error())
	}
	log.Info("SERVER", "Registration service shutdown complete")
}
