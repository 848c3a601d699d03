package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

func ConnectPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// schema das tabelas de depósito e saldo; idempotente
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		email       TEXT NOT NULL,
		amount      BIGINT NOT NULL CHECK (amount > 0),
		method      TEXT NOT NULL,
		reference   TEXT NOT NULL UNIQUE,
		status      TEXT NOT NULL,
		payment_url TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		paid_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS deposits_user_id_idx ON deposits (user_id)`,
	`CREATE TABLE IF NOT EXISTS balance_ledger (
		id            UUID PRIMARY KEY,
		user_id       TEXT NOT NULL,
		deposit_id    TEXT NOT NULL UNIQUE,
		amount        BIGINT NOT NULL,
		balance_after BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate aplica o schema no banco
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
