package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slr-manager/config"
	"slr-manager/models"
	"slr-manager/providers/searchservice"
	"slr-manager/services"
	"slr-manager/storage"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to review database", zap.Error(err))
	}
	logging.Info("Successfully connected to review database.")

	// Auto-Migration
	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		if err := db.Migrator().DropTable(models.ReviewModels()...); err != nil {
			logging.Warn("Dropping tables failed", zap.Error(err))
		}
	}
	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(models.ReviewModels()...); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Providers
	searchClient := searchservice.NewClient(cfg.SearchServiceURL, cfg.APISecretKey, cfg.RemoteTimeout, logging)

	var uploader services.ReportUploader
	if cfg.S3.Enabled() {
		store, err := storage.NewS3Store(context.Background(), cfg.S3)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		uploader = store
	} else {
		logging.Info("S3 not configured, report export disabled")
	}

	var deny storage.DenyList = storage.NewMemoryDenyList()
	if cfg.RedisURL != "" {
		redisDeny, err := storage.NewRedisDenyListFromURL(context.Background(), cfg.RedisURL)
		if err != nil {
			logging.Fatal("Redis connection failed", zap.Error(err))
		}
		defer redisDeny.Close()
		deny = redisDeny
		logging.Info("Using redis token deny-list")
	}

	// Setup Services
	svc := newReviewServices(db, searchClient, uploader, cfg, logging)
	worker := services.NewSearchJobWorker(db, searchClient, cfg.SearchJobBatchSize, logging)

	// Setup Router
	router := setupRouter(svc, cfg, deny, logging)

	// Setup Cron
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.SearchJobSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := worker.ProcessBatch(ctx); err != nil {
			logging.Error("Search job batch failed", zap.Error(err))
		}
	})
	if err != nil {
		logging.Fatal("Invalid search job schedule", zap.String("schedule", cfg.SearchJobSchedule), zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting review service", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
