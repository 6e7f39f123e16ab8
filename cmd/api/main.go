package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/planscan/internal/api"
	"github.com/timmy/planscan/internal/config"
	"github.com/timmy/planscan/internal/logger"
	"github.com/timmy/planscan/internal/repository"
	"github.com/timmy/planscan/internal/service"
	"github.com/timmy/planscan/internal/storage"
)

func main() {
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	ctx := context.Background()
	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled() {
		s3Storage, err := storage.NewStorage(cfg.Storage)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize storage")
		}
		objectStorage = s3Storage
	} else {
		appLogger.Warn("Object storage not configured; only local paths and URLs can be parsed")
	}

	inference, err := service.NewInferenceClient(cfg.Inference)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize inference client")
	}

	parseService := service.NewParseService(
		repository.NewParseJobRepository(db),
		service.NewPipeline(cfg, objectStorage, inference),
		cfg.Pipeline.JobTimeout,
	)

	router := api.SetupRouter(parseService, sqlDB, cfg.Server)

	// Parse requests are synchronous, so the write timeout must outlast the job budget.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Pipeline.JobTimeout + 30*time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// In-flight parses get their whole budget to finish and record a terminal state.
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Pipeline.JobTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
