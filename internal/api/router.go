package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

type RouterConfig struct {
	Service *scheduling.Service
	Logger  zerolog.Logger
	PgPool  *pgxpool.Pool // nil with the memory store
	Redis   *redis.Client // nil when Redis is disabled
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	var deps []Dependency
	if cfg.PgPool != nil {
		deps = append(deps, Dependency{Name: "postgres", Critical: true, Ping: cfg.PgPool.Ping})
	}
	if cfg.Redis != nil {
		rdb := cfg.Redis
		deps = append(deps, Dependency{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	health := NewHealthHandler(deps, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	svc := cfg.Service

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(svc))
			r.Get("/", listAppointmentsHandler(svc))
			r.Get("/{id}", getAppointmentHandler(svc))
			r.Post("/{id}/status", changeStatusHandler(svc))
			r.Post("/{id}/cancel", cancelAppointmentHandler(svc))
			r.Put("/{id}/attachment", attachFileHandler(svc))
			r.Delete("/{id}/attachment", detachFileHandler(svc))
			r.With(RequireClinic).Post("/{id}/archive", archiveAppointmentHandler(svc))
			r.With(RequireClinic).Delete("/{id}", deleteAppointmentHandler(svc))
		})

		r.Get("/availability", checkAvailabilityHandler(svc))
		r.Get("/availability/day", daySlotStatsHandler(svc))
		r.Get("/shift-capacity", shiftCapacityHandler(svc))

		r.Get("/slot-limits", listLimitsHandler(svc))
		r.With(RequireClinic).Put("/slot-limits", saveLimitsHandler(svc))

		r.Get("/blocked-dates", listBlockedDatesHandler(svc))
		r.With(RequireClinic).Post("/blocked-dates", blockDateHandler(svc))
		r.With(RequireClinic).Delete("/blocked-dates/{id}", unblockDateHandler(svc))

		r.Get("/blocked-slots", listBlockedSlotsHandler(svc))
		r.With(RequireClinic).Post("/blocked-slots", blockSlotHandler(svc))
		r.With(RequireClinic).Delete("/blocked-slots/{id}", unblockSlotHandler(svc))
	})

	return r
}
