// Package storage implements the Execution Store / Workflow Store / Project
// Store (C8): Postgres persistence via uptrace/bun, fronted by a Redis
// read-through cache for the hot GetByID execution read.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/workflowkit/engine/internal/config"
)

// NewDB opens a Postgres connection pool through bun, sized from cfg, and
// registers every row model so relation queries can resolve across tables.
func NewDB(cfg config.DatabaseConfig, debug bool) (*bun.DB, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.URL),
		pgdriver.WithTimeout(30*time.Second),
		pgdriver.WithDialTimeout(10*time.Second),
		pgdriver.WithReadTimeout(10*time.Second),
		pgdriver.WithWriteTimeout(10*time.Second),
	)
	sqldb := sql.OpenDB(connector)

	sqldb.SetMaxOpenConns(cfg.MaxConnections)
	sqldb.SetMaxIdleConns(cfg.MinConnections)
	sqldb.SetConnMaxLifetime(cfg.MaxConnLifetime)
	sqldb.SetConnMaxIdleTime(cfg.MaxIdleTime)

	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	registerModels(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}
	return db, nil
}

func registerModels(db *bun.DB) {
	db.RegisterModel(
		(*workflowRow)(nil),
		(*projectRow)(nil),
		(*executionRow)(nil),
		(*nodeExecutionRow)(nil),
		(*executionLogRow)(nil),
		(*triggerRow)(nil),
	)
}

// InitSchema creates every table this package owns if it does not already
// exist. Migrations beyond additive table creation are out of scope.
func InitSchema(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*workflowRow)(nil),
		(*projectRow)(nil),
		(*executionRow)(nil),
		(*nodeExecutionRow)(nil),
		(*executionLogRow)(nil),
		(*triggerRow)(nil),
	}
	for _, m := range models {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("storage: create table for %T: %w", m, err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// Ping verifies connectivity.
func Ping(ctx context.Context, db *bun.DB) error {
	return db.PingContext(ctx)
}

// Stats returns the underlying pool's connection statistics.
func Stats(db *bun.DB) sql.DBStats {
	return db.DB.Stats()
}

// WithTransaction runs fn inside a read-committed transaction.
func WithTransaction(ctx context.Context, db *bun.DB, fn func(tx bun.Tx) error) error {
	return db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx bun.Tx) error {
		return fn(tx)
	})
}
