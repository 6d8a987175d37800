package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const cardsSchema = `
CREATE TABLE IF NOT EXISTS cards (
    card_number VARCHAR(16)   PRIMARY KEY,
    password    TEXT          NOT NULL,
    balance     NUMERIC(10,2) NOT NULL CHECK (balance >= 0),
    version     BIGINT        NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ   NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the cards table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, cardsSchema); err != nil {
		return fmt.Errorf("create cards table: %w", err)
	}
	return nil
}
