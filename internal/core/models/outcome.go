package models

import "github.com/shopspring/decimal"

type CreateStatus string

const (
	CardCreated       CreateStatus = "CREATED"
	CardAlreadyExists CreateStatus = "ALREADY_EXISTS"
)

// CreateResult carries the new card on CardCreated and the existing one on
// CardAlreadyExists.
type CreateResult struct {
	Status CreateStatus
	Card   CardSummary
}

type BalanceStatus string

const (
	BalanceFound    BalanceStatus = "FOUND"
	BalanceNotFound BalanceStatus = "NOT_FOUND"
)

type BalanceResult struct {
	Status  BalanceStatus
	Balance decimal.Decimal
}

// Formatted renders the balance with exactly two fractional digits.
func (r BalanceResult) Formatted() string {
	return r.Balance.StringFixed(2)
}

// DebitStatus is the closed set of debit outcomes. Everything except
// DebitApproved is a decline.
type DebitStatus string

const (
	DebitApproved          DebitStatus = "OK"
	DebitCardNotFound      DebitStatus = "CARD_NOT_FOUND"
	DebitInvalidCredential DebitStatus = "INVALID_CREDENTIAL"
	DebitInsufficientFunds DebitStatus = "INSUFFICIENT_FUNDS"
	DebitInvalidAmount     DebitStatus = "INVALID_AMOUNT"
)

func (s DebitStatus) Approved() bool {
	return s == DebitApproved
}
