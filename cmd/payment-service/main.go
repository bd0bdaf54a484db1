package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/payment/handler"
	"ms-registration/internal/payment/services"
	"ms-registration/internal/payment/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger("payment-service")
	defer log.Close()

	store, err := storage.NewPostgreSQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize payment storage: "+err.Error())
	}
	defer store.Close()

	stripeService, err := services.NewStripeService(log)
	if err != nil {
		log.Fatal("STRIPE", "Failed to initialize Stripe client: "+err.Error())
	}

	stripeHandler := handler.NewStripeHandler(stripeService, store, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	stripeHandler.RegisterRoutes(router)

	port := os.Getenv("PAYMENT_PORT")
	if port == "" {
		port = ":8081"
	}

	server := &http.Server{
		Addr:         port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Payment service on "+port)
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
	log.Info("SERVER", "Payment service shutdown complete")
}
