package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/itsmahammad/UniversityERP/pkg/config"
	"github.com/itsmahammad/UniversityERP/pkg/database"
	"github.com/itsmahammad/UniversityERP/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ran, err := database.Migrate(context.Background(), db, logr)
	if err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("migrations completed", zap.Int("applied", len(ran)))
}
