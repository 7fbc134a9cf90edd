// workflowkit-migrate creates the engine's Postgres tables. Schema
// management here is additive-only (CREATE TABLE IF NOT EXISTS per store's
// row model) — there is no down-migration or versioned migration history,
// since the engine owns a fixed, small set of tables rather than an
// evolving product schema.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/workflowkit/engine/internal/config"
	"github.com/workflowkit/engine/internal/logger"
	"github.com/workflowkit/engine/internal/storage"
)

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL database URL (overrides WORKFLOWKIT_DATABASE_URL)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if databaseURL != "" {
		cfg.Database.URL = databaseURL
	}

	log := logger.New(cfg.Logging)

	db, err := storage.NewDB(cfg.Database, cfg.Logging.Level == "debug")
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer storage.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := storage.InitSchema(ctx, db); err != nil {
		log.Error("schema initialization failed", "error", err)
		os.Exit(1)
	}

	log.Info("schema initialized")
}
