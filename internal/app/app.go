// Package app wires the store, locker and publisher chosen by configuration
// into a scheduling service.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
	"github.com/hackgods/clinic-capacity-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-capacity-scheduling/internal/redis"
	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

type App struct {
	Service *scheduling.Service
	PgPool  *pgxpool.Pool // nil with the memory store
	Redis   *redis.Client // nil when Redis is disabled

	log zerolog.Logger
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	a := &App{log: log}

	var repo scheduling.Repository
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.AutoMigrate, log)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.PgPool = pool
		repo = scheduling.NewPgRepository(pool)
	default:
		log.Warn().Msg("using in-memory store, data is lost on exit")
		repo = scheduling.NewMemoryRepository()
	}

	var locker scheduling.SlotLocker = scheduling.NewLocalSlotLocker(cfg.LockWait)
	opts := []scheduling.Option{scheduling.WithLogger(log)}

	if cfg.RedisEnabled {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Redis = rdb
		locker = redisclient.NewSlotLocker(rdb, cfg.LockTTL, cfg.LockWait)
		opts = append(opts, scheduling.WithPublisher(redisclient.NewPublisher(rdb)))
		log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
	}

	svc, err := scheduling.NewService(repo, locker, cfg, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing redis")
		}
	}
	if a.PgPool != nil {
		a.PgPool.Close()
	}
}
