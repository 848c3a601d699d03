package repo

import (
	"context"
	"fmt"

	"github.com/chiearnhub/payment-bridge/internal/payment-service/deposit"
	"github.com/chiearnhub/payment-bridge/internal/shared/config"
	"github.com/chiearnhub/payment-bridge/internal/shared/db"
	"github.com/chiearnhub/payment-bridge/internal/shared/docdb"
)

// Open conecta o store escolhido por STORE_DRIVER e aplica schema/índices.
func Open(ctx context.Context, cfg config.Config) (deposit.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pg); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return NewPostgres(pg), nil
	case "mongo":
		client, err := docdb.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		m := NewMongo(client, cfg.MongoDB)
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return m, nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
