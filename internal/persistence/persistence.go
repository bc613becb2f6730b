// Package persistence selects the repository backend named in the configuration.
package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"example.com/fitlog/internal/config"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/persistence/memory"
	"example.com/fitlog/internal/persistence/postgres"
	"example.com/fitlog/internal/persistence/sqlite"
)

// Store bundles the opened repository with the resources that back it.
type Store struct {
	Repo domain.Repository
	// Pool is set for the postgres driver; the outbox dispatcher shares it.
	Pool  *pgxpool.Pool
	close func() error
}

// Close releases the backing connections.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Migrate applies pending schema migrations for the configured driver.
func Migrate(cfg config.StoreConfig) error {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.RunMigrations(cfg.PostgresURL)
	case config.DriverSQLite:
		return sqlite.RunMigrations(cfg.SQLitePath)
	case config.DriverMemory:
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Open connects to the configured backend. withOutbox makes the postgres repository record
// domain events; other drivers ignore it.
func Open(ctx context.Context, cfg config.StoreConfig, withOutbox bool, log zerolog.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pinging postgres: %w", err)
		}
		var opts []postgres.Option
		if withOutbox {
			opts = append(opts, postgres.WithOutbox())
		}
		log.Info().Str("driver", cfg.Driver).Bool("outbox", withOutbox).Msg("store opened")
		return &Store{
			Repo:  postgres.NewRepository(pool, opts...),
			Pool:  pool,
			close: func() error { pool.Close(); return nil },
		}, nil

	case config.DriverSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.Driver).Str("path", cfg.SQLitePath).Msg("store opened")
		return &Store{Repo: repo, close: repo.Close}, nil

	case config.DriverMemory:
		log.Warn().Str("driver", cfg.Driver).Msg("store opened; data is lost on exit")
		return &Store{Repo: memory.NewRepository()}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
