package repository

import (
	"context"
	"errors"

	"github.com/Nzyazin/miniauthorizer/internal/core/models"
)

var (
	ErrCardNotFound    = errors.New("card not found")
	ErrCardExists      = errors.New("card already exists")
	ErrVersionConflict = errors.New("card was modified concurrently")
	ErrLockTimeout     = errors.New("timed out waiting for card lock")
)

// CardRepository stores cards. Reads through Find never take locks and only
// observe committed state.
type CardRepository interface {
	Find(ctx context.Context, number string) (*models.Card, error)
	// Save inserts cards with Version 0 and updates the rest, bumping Version
	// on success.
	Save(ctx context.Context, card *models.Card) error
	// WithTransaction runs fn in a unit of work. It commits only when fn
	// returns nil; any error, panic or context cancellation rolls back and
	// releases every lock taken through the CardTx.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx CardTx) error) error
	Ping(ctx context.Context) error
}

// CardTx is the view of the store inside a unit of work.
type CardTx interface {
	// FindForUpdate reads the card and holds an exclusive lock on it until
	// the unit of work ends.
	FindForUpdate(ctx context.Context, number string) (*models.Card, error)
	Save(ctx context.Context, card *models.Card) error
}
