package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"example.com/fitlog/internal/api"
	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/logging"
	"example.com/fitlog/internal/outbox"
	"example.com/fitlog/internal/persistence"
	httptransport "example.com/fitlog/internal/transport/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("FITLOG_CONFIG"))
	if err != nil {
		bootLog := logging.Setup("info", "console")
		bootLog.Fatal().Err(err).Msg("loading config")
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := persistence.Migrate(cfg.Store); err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("applying migrations")
	}
	store, err := persistence.Open(ctx, cfg.Store, cfg.Outbox.Enabled, log)
	if err != nil {
		log.Fatal().Err(err).Msg("opening store")
	}
	defer store.Close()

	service := domain.NewService(store.Repo, domain.WithLogger(log.With().Str("component", "domain").Logger()))

	// /metrics moves to its own listener when one is configured.
	router := api.NewRouter(service, api.RouterConfig{
		Auth:         auth.Config{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.JWTIssuer},
		CORSOrigin:   cfg.HTTP.CORSOrigin,
		Logger:       log.With().Str("component", "http").Logger(),
		ServeMetrics: cfg.Metrics.Address == "",
	})
	serverCfg := httptransport.ServerConfig{
		Address:         cfg.HTTP.Address,
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httptransport.ListenAndServe(gctx, serverCfg, router, log)
	})
	if cfg.Metrics.Address != "" {
		g.Go(func() error {
			return httptransport.Serve(gctx, httptransport.NewMetricsServer(cfg.Metrics.Address), 0, log)
		})
	}

	if cfg.Outbox.Enabled {
		producer := outbox.NewKafkaProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		registry := outbox.NewRegistry(cfg.Kafka.SchemaRegistryURL)
		dispatcher := outbox.NewDispatcher(store.Pool, producer, registry, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize,
			outbox.WithLogger(log.With().Str("component", "outbox").Logger()))
		g.Go(func() error {
			dispatcher.Start(gctx)
			return nil
		})
	}

	log.Info().
		Str("address", cfg.HTTP.Address).
		Str("driver", cfg.Store.Driver).
		Bool("outbox", cfg.Outbox.Enabled).
		Msg("fitlog api starting")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("fitlog api stopped with error")
		stop()
		store.Close()
		os.Exit(1)
	}
	log.Info().Msg("fitlog api stopped")
}
