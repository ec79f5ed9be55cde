package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-capacity-scheduling/internal/app"
	"github.com/hackgods/clinic-capacity-scheduling/internal/config"
	"github.com/hackgods/clinic-capacity-scheduling/internal/logging"
	"github.com/hackgods/clinic-capacity-scheduling/internal/scheduling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("dev", "archive-worker")
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := logging.New(cfg.Env, "archive-worker")
	log.Info().
		Dur("interval", cfg.WorkerInterval).
		Dur("archive_after", cfg.ArchiveAfter).
		Msg("archive-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(rootCtx, 15*time.Second)
	a, err := app.New(connectCtx, cfg, log)
	cancelConnect()
	if err != nil {
		log.Fatal().Err(err).Msg("startup error")
	}
	defer a.Close()

	// Run once at startup
	runOnce(rootCtx, a.Service, cfg.ArchiveAfter, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping archive worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Service, cfg.ArchiveAfter, log)
		}
	}
}

func runOnce(ctx context.Context, svc *scheduling.Service, after time.Duration, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := time.Now().In(svc.Location()).Add(-after).Format(scheduling.DateLayout)

	start := time.Now()
	n, err := svc.ArchiveBefore(runCtx, cutoff)
	if err != nil {
		log.Error().Err(err).Int("archived", n).Str("before", cutoff).Msg("archive run error")
		return
	}
	log.Info().
		Int("archived", n).
		Str("before", cutoff).
		Dur("took", time.Since(start)).
		Msg("archive run complete")
}
