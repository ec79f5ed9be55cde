package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Booking holds a pooled connection for the whole slot transaction, so the
// pool needs headroom above the expected number of concurrent bookings.
const (
	maxConns = 20
	minConns = 2
)

// ConnectPostgres opens the pool, verifies connectivity and optionally brings
// the schema up to date.
func ConnectPostgres(ctx context.Context, dsn string, migrate bool, log zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if migrate {
		n, err := NewMigrator(pool, nil).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Int("applied", n).Msg("postgres schema up to date")
	}

	log.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Msg("connected to postgres")
	return pool, nil
}
