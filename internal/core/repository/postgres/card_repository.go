package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/miniauthorizer/internal/core/logger"
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository"
	"github.com/jmoiron/sqlx"
)

const (
	selectCardQuery = `SELECT card_number, password, balance, version, created_at, updated_at
        FROM cards WHERE card_number = $1`

	insertCardQuery = `INSERT INTO cards (card_number, password, balance, version)
        VALUES ($1, $2, $3, 1)
        RETURNING version, created_at, updated_at`

	updateCardQuery = `
        UPDATE cards
        SET balance = $1, version = version + 1, updated_at = NOW()
        WHERE card_number = $2 AND version = $3
        RETURNING version, updated_at
    `
)

type postgresCardRepo struct {
	db          *sqlx.DB
	log         logger.Logger
	lockTimeout time.Duration
}

// NewPostgresCardRepo returns a card store backed by the cards table. A
// positive lockTimeout bounds how long FindForUpdate waits for a row lock.
func NewPostgresCardRepo(db *sqlx.DB, log logger.Logger, lockTimeout time.Duration) repository.CardRepository {
	return &postgresCardRepo{
		db:          db,
		log:         log,
		lockTimeout: lockTimeout,
	}
}

func (r *postgresCardRepo) Find(ctx context.Context, number string) (*models.Card, error) {
	return getCard(ctx, r.db, selectCardQuery, number)
}

func (r *postgresCardRepo) Save(ctx context.Context, card *models.Card) error {
	return saveCard(ctx, r.db, card)
}

func (r *postgresCardRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *postgresCardRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.CardTx) error) (err error) {
	var isCommitted bool
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		r.log.Error("Error beginning transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	// also runs while a panic unwinds, so the row lock never outlives fn
	defer func() {
		if isCommitted {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("Transaction rollback failed",
				logger.ErrorField("error", rbErr))
			if err != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if err != nil {
			r.log.Debug("Transaction rolled back",
				logger.ErrorField("error", err))
		}
	}()

	if r.lockTimeout > 0 {
		// SET does not take bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err = fn(ctx, &postgresCardTx{tx: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return nil
}

type postgresCardTx struct {
	tx *sqlx.Tx
}

func (t *postgresCardTx) FindForUpdate(ctx context.Context, number string) (*models.Card, error) {
	card, err := getCard(ctx, t.tx, selectCardQuery+" FOR UPDATE", number)
	if err != nil && isLockTimeout(err) {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrLockTimeout, number, err)
	}
	return card, err
}

func (t *postgresCardTx) Save(ctx context.Context, card *models.Card) error {
	return saveCard(ctx, t.tx, card)
}

func getCard(ctx context.Context, q sqlx.QueryerContext, query, number string) (*models.Card, error) {
	var card models.Card
	err := sqlx.GetContext(ctx, q, &card, query, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrCardNotFound, number)
		}
		return nil, fmt.Errorf("error getting card: %w", err)
	}
	return &card, nil
}

func saveCard(ctx context.Context, q sqlx.QueryerContext, card *models.Card) error {
	if card.Version == 0 {
		return insertCard(ctx, q, card)
	}
	return updateCard(ctx, q, card)
}

func insertCard(ctx context.Context, q sqlx.QueryerContext, card *models.Card) error {
	err := q.QueryRowxContext(ctx, insertCardQuery, card.Number, card.Password, card.Balance).
		Scan(&card.Version, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", repository.ErrCardExists, card.Number)
		}
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func updateCard(ctx context.Context, q sqlx.QueryerContext, card *models.Card) error {
	err := q.QueryRowxContext(ctx, updateCardQuery, card.Balance, card.Number, card.Version).
		Scan(&card.Version, &card.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s at version %d", repository.ErrVersionConflict, card.Number, card.Version)
		}
		if isLockTimeout(err) {
			return fmt.Errorf("%w: %s: %v", repository.ErrLockTimeout, card.Number, err)
		}
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}
