package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/api"
	"github.com/hackgods/clinic-capacity-scheduling/internal/app"
	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
	"github.com/hackgods/clinic-capacity-scheduling/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "api-server")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "api-server")
	log.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Bool("redis", cfg.RedisEnabled).
		Str("timezone", cfg.Timezone).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(rootCtx, 15*time.Second)
	a, err := app.New(connectCtx, cfg, log)
	cancelConnect()
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer a.Close()

	srv := newServer(cfg, a, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
			a.Close()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("api-server stopped")
}

func newServer(cfg config.Config, a *app.App, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service: a.Service,
			Logger:  log,
			PgPool:  a.PgPool,
			Redis:   a.Redis,
			Env:     cfg.Env,
			Version: cfg.Version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
