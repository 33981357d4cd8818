package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Simplici0/printcost/internal/config"
	"github.com/Simplici0/printcost/internal/db"
	"github.com/Simplici0/printcost/internal/logger"
	"github.com/Simplici0/printcost/internal/migrations"
	"github.com/Simplici0/printcost/internal/pricing"
	"github.com/Simplici0/printcost/internal/seed"
	"github.com/Simplici0/printcost/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LoggerOptions()); err != nil {
		logger.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	policy, err := pricing.ParseOverusePolicy(cfg.OverusePolicy)
	if err != nil {
		logger.Fatalf("invalid OVERUSE_POLICY: %v", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		logger.Fatalf("failed to run database migrations: %v", err)
	}

	stats, err := seed.Run(database)
	if err != nil {
		logger.Fatalf("failed to seed database: %v", err)
	}
	logger.Info("database ready",
		zap.String("path", cfg.DBPath),
		zap.Int("seed_inserts", stats.Inserts),
	)

	srv := newServer(store.New(database), pricing.Options{Overuse: policy})
	srv.maxUpload = cfg.MaxUploadBytes()

	if cfg.ImportGcode != "" {
		extract, err := srv.importFile(cfg.ImportGcode)
		if err != nil {
			logger.Fatalf("failed to import %s: %v", cfg.ImportGcode, err)
		}
		logger.Info("gcode imported",
			zap.String("file", cfg.ImportGcode),
			zap.String("time_source", extract.TimeSource),
			zap.Float64("filament_mm", extract.FilamentMm),
		)
	}

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("overuse_policy", string(policy)))
	if err := http.ListenAndServe(addr, srv.routes()); err != nil {
		logger.Fatalf("server stopped: %v", err)
	}
}
