package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nabookma/bookstore/internal/config"
	"github.com/nabookma/bookstore/internal/es"
	"github.com/nabookma/bookstore/internal/logging"
	csrfmw "github.com/nabookma/bookstore/internal/middleware/csrf"
	logmw "github.com/nabookma/bookstore/internal/middleware/logging"
	"github.com/nabookma/bookstore/internal/mykafka"
	"github.com/nabookma/bookstore/internal/service/storage"
	httpserver "github.com/nabookma/bookstore/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	configuration.MustSecrets()

	logger := logging.New(configuration.LOG_LEVEL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := config.InitDB(ctx, configuration)
	cancel()
	if err != nil {
		log.Fatalf("init db: %v", err)
	}

	topics := []string{
		mykafka.TopicCustomerEvents,
		mykafka.TopicBookEvents,
		mykafka.TopicBasketEvents,
		mykafka.TopicOrderEvents,
	}
	prod, err := mykafka.NewProducer(configuration.KAFKA_BROKERS, topics)
	if err != nil {
		log.Fatalf("init kafka producer: %v", err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		logger.Warn("elasticsearch unavailable, search disabled", "error", err)
		esClient = nil
	}

	var store *storage.ImageStore
	if configuration.S3_BUCKET != "" {
		store, err = storage.NewImageStore(context.Background(),
			configuration.S3_BUCKET, configuration.S3_REGION,
			configuration.S3_ACCESS_KEY, configuration.S3_SECRET_KEY)
		if err != nil {
			logger.Warn("s3 unavailable, image upload disabled", "error", err)
			store = nil
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowCredentials: true,
	}))
	e.Use(logmw.RequestLogger(logger))
	e.Use(csrfmw.Middleware(csrfmw.DefaultConfig()))

	httpserver.RegisterRoutes(e, httpserver.Deps{
		DB:            db,
		Producer:      prod,
		ES:            esClient,
		Store:         store,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	})

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()
	logger.Info("server started", "addr", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}

	if err := prod.Close(); err != nil {
		logger.Error("close kafka producer", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("server stopped")
}
