package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Card is a prepaid balance account guarded by a static password.
type Card struct {
	Number    string          `json:"cardNumber" db:"card_number"`
	Password  string          `json:"-" db:"password"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int64           `json:"-" db:"version"` // 0 until the card is first stored
	CreatedAt time.Time       `json:"-" db:"created_at"`
	UpdatedAt time.Time       `json:"-" db:"updated_at"`
}

// CardSummary is what callers get back when a card is created or when a
// creation collides with an existing card. It never carries the balance.
type CardSummary struct {
	Number   string `json:"cardNumber"`
	Password string `json:"password"`
}

func (c *Card) Summary() CardSummary {
	return CardSummary{Number: c.Number, Password: c.Password}
}

// PasswordMatches compares byte for byte, no normalization.
func (c *Card) PasswordMatches(password string) bool {
	return c.Password == password
}

// CardRequest is the body of a card creation request.
type CardRequest struct {
	Number   string `json:"cardNumber" validate:"required,notblank,max=16"`
	Password string `json:"password" validate:"required,notblank"`
}

// DebitOperation is a point-of-sale debit against a card.
type DebitOperation struct {
	CardNumber   string          `json:"cardNumber" validate:"required,notblank"`
	CardPassword string          `json:"cardPassword" validate:"required,notblank"`
	Amount       decimal.Decimal `json:"amount"`
}
