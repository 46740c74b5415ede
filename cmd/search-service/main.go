package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slr-manager/config"
	"slr-manager/models"
	"slr-manager/providers/europepmc"
	"slr-manager/providers/reviewservice"
	"slr-manager/services"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.LoadSearch()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		logging.Fatal("Failed to connect to search database", zap.Error(err))
	}
	logging.Info("Successfully connected to search database.")

	if gin.Mode() == gin.DebugMode {
		logging.Info("Debug mode detected. Dropping tables for fresh start.")
		if err := db.Migrator().DropTable(models.SearchModels()...); err != nil {
			logging.Warn("Dropping tables failed", zap.Error(err))
		}
	}
	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(models.SearchModels()...); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	reviewClient := reviewservice.NewClient(cfg.ReviewServiceURL, cfg.APISecretKey, cfg.RemoteTimeout, logging)
	literature := europepmc.NewClient(cfg.EuropePMCURL, cfg.ImportTimeout, logging)
	searches := services.NewSearchService(db, reviewClient, literature, logging)
	instances := services.NewFormInstanceService(db, reviewClient, logging)

	router := setupRouter(searches, instances, cfg.APISecretKey, cfg.ImportLimit, logging)

	logging.Info("Starting search service", zap.String("port", cfg.HTTPPort))
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
