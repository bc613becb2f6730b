package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/consumer"
	"example.com/fitlog/internal/logging"
	httptransport "example.com/fitlog/internal/transport/http"
)

func main() {
	cfg, err := config.Load(os.Getenv("FITLOG_CONFIG"))
	if err != nil {
		bootLog := logging.Setup("info", "console")
		bootLog.Fatal().Err(err).Msg("loading config")
	}
	log := logging.Setup(cfg.Log.Level, cfg.Log.Format).With().Str("component", "consumer").Logger()

	if cfg.Store.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Store.Driver).Msg("the event log consumer requires the postgres driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to postgres")
	}
	defer pool.Close()

	handler := consumer.NewPersistenceHandler(pool)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Address != "" {
		g.Go(func() error {
			return httptransport.Serve(gctx, httptransport.NewMetricsServer(cfg.Metrics.Address), 0, log)
		})
	}

	for _, topic := range cfg.Consumer.Topics {
		topic := topic
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Consumer.GroupID,
			Topic:           topic,
			MinBytes:        1e3,
			MaxBytes:        10e6,
			CommitInterval:  time.Second,
			RetentionTime:   24 * time.Hour,
			ReadLagInterval: -1,
		})
		proc := consumer.NewProcessor(reader, handler,
			consumer.WithLogger(log.With().Str("topic", topic).Logger()))

		g.Go(func() error {
			defer reader.Close()

			log.Info().Str("topic", topic).Str("group", cfg.Consumer.GroupID).Msg("consumer started")
			if err := proc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("consumer stopped with error")
		return
	}
	log.Info().Msg("consumer stopped")
}
