package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/logging"
	"example.com/fitlog/internal/outbox"
	httptransport "example.com/fitlog/internal/transport/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("FITLOG_CONFIG"))
	if err != nil {
		bootLog := logging.Setup("info", "console")
		bootLog.Fatal().Err(err).Msg("loading config")
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.Format).With().Str("component", "dlqmanager").Logger()

	if cfg.Store.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Store.Driver).Msg("the dlq manager requires the postgres driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to postgres")
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQ.MaxRetries, cfg.DLQ.BaseDelay, log)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Address != "" {
		g.Go(func() error {
			return httptransport.Serve(gctx, httptransport.NewMetricsServer(cfg.Metrics.Address), 0, log)
		})
	}
	g.Go(func() error {
		err := manager.Run(gctx, cfg.DLQ.PollInterval, cfg.DLQ.BatchSize)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("dlq manager stopped with error")
		return
	}
	log.Info().Msg("dlq manager stopped")
}
