// Package app builds the components shared by the server and the CLI from the
// application config.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/eternisai/session-titler/internal/config"
	"github.com/eternisai/session-titler/internal/logger"
	"github.com/eternisai/session-titler/internal/providers"
	"github.com/eternisai/session-titler/internal/routing"
	"github.com/eternisai/session-titler/internal/storage/fsstore"
	"github.com/eternisai/session-titler/internal/storage/sqlstore"
	"github.com/eternisai/session-titler/internal/title_generation"
)

// NewStore opens the storage backend selected by STORAGE_BACKEND.
func NewStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (title_generation.Store, io.Closer, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendPostgres, config.StorageBackendSQLite:
		dialect := sqlstore.DialectPostgres
		if cfg.StorageBackend == config.StorageBackendSQLite {
			dialect = sqlstore.DialectSQLite
		}

		store, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL, sqlstore.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Minute,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}

		log.Info("sql storage initialized", slog.String("dialect", string(dialect)))
		return store, store, nil

	case config.StorageBackendFirestore:
		client, err := fsstore.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredJSON)
		if err != nil {
			return nil, nil, err
		}

		log.Info("firestore storage initialized", slog.String("project_id", cfg.FirebaseProjectID))
		store := fsstore.New(client)
		return store, store, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}

// NewSelector creates the model selector over the configured providers.
func NewSelector(cfg *config.Config, log *logger.Logger) (*routing.Selector, error) {
	registry, err := providers.NewRegistry(cfg.TitleGeneration, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider registry: %w", err)
	}

	return routing.NewSelector(registry, routing.FallbackFromConfig(cfg.TitleGeneration), log), nil
}

// NewGenerator creates the title generator for the configured model.
func NewGenerator(cfg *config.Config, log *logger.Logger) (*title_generation.Generator, error) {
	selector, err := NewSelector(cfg, log)
	if err != nil {
		return nil, err
	}

	return title_generation.NewGenerator(selector, cfg.TitleGeneration.Model, log), nil
}

// ConnectNATS connects to NATS_URL. Returns nil without error when NATS is not configured.
func ConnectNATS(cfg *config.Config, log *logger.Logger) (*nats.Conn, error) {
	if cfg.NatsURL == "" {
		return nil, nil
	}

	log = log.WithComponent("nats")

	nc, err := nats.Connect(cfg.NatsURL,
		nats.Name("session-titler-"+logger.GetInstanceID()),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	log.Info("connected to nats", slog.String("url", nc.ConnectedUrl()))

	return nc, nil
}
