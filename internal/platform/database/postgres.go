package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type Config struct {
	URL          string
	MaxOpenConns int
	MaxAttempts  int
}

// NewPostgresDB opens a pool and waits for the database to accept
// connections, retrying with exponential backoff.
func NewPostgresDB(ctx context.Context, cfg Config, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	attempt := 0
	ping := func() error {
		attempt++
		logger.WithField("attempt", attempt).Info("connecting to database")
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(maxAttempts-1)), ctx)

	if err := backoff.Retry(ping, retry); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database not reachable after %d attempts: %w", attempt, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("database connected")
	return db, nil
}
