package db

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared connection pool. Services build their SQL with
// squirrel and execute it here.
var Pool *pgxpool.Pool

func InitDB(ctx context.Context, databaseURL string) error {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		log.Printf("Failed to parse database config: %v", err)
		return err
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Printf("Failed to create connection pool: %v", err)
		return err
	}

	if err := pool.Ping(ctx); err != nil {
		log.Printf("Failed to ping database: %v", err)
		return err
	}

	Pool = pool
	log.Println("Connected to database")
	return nil
}

func Close() {
	if Pool != nil {
		Pool.Close()
	}
}
