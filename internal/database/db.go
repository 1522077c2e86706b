package database

import (
	"context"
	"database/sql"
	"time"

	"priceguard/internal/logger"

	_ "github.com/lib/pq"
)

// Open connects to Postgres and configures the shared pool.
func Open(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	logger.Log.Info("Database connection established")
	return db, nil
}
