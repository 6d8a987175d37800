package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/miniauthorizer/internal/core/logger"
	"github.com/Nzyazin/miniauthorizer/internal/core/metrics"
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository"
	"github.com/shopspring/decimal"
)

// InitialBalance is granted to every new card and is the only amount ever
// credited.
var InitialBalance = decimal.New(50000, -2)

// errDeclined makes WithTransaction roll back a declined debit.
var errDeclined = errors.New("debit declined")

type Authorizer interface {
	CreateCard(ctx context.Context, req models.CardRequest) (models.CreateResult, error)
	GetBalance(ctx context.Context, number string) (models.BalanceResult, error)
	Debit(ctx context.Context, op models.DebitOperation) (models.DebitStatus, error)
}

type authorizer struct {
	repo    repository.CardRepository
	log     logger.Logger
	metrics *metrics.Authorizer
}

func NewAuthorizer(repo repository.CardRepository, log logger.Logger, m *metrics.Authorizer) Authorizer {
	return &authorizer{repo: repo, log: log, metrics: m}
}

func (uc *authorizer) CreateCard(ctx context.Context, req models.CardRequest) (models.CreateResult, error) {
	existing, err := uc.repo.Find(ctx, req.Number)
	switch {
	case err == nil:
		return uc.alreadyExists(existing), nil
	case !errors.Is(err, repository.ErrCardNotFound):
		return models.CreateResult{}, uc.storeError("Card lookup failed", req.Number, err)
	}

	card := &models.Card{
		Number:   req.Number,
		Password: req.Password,
		Balance:  InitialBalance,
	}

	if err := uc.repo.Save(ctx, card); err != nil {
		if !errors.Is(err, repository.ErrCardExists) {
			return models.CreateResult{}, uc.storeError("Card insert failed", req.Number, err)
		}

		// a concurrent creation won between the lookup and the insert
		existing, err := uc.repo.Find(ctx, req.Number)
		if err != nil {
			return models.CreateResult{}, uc.storeError("Card lookup after duplicate insert failed", req.Number, err)
		}
		return uc.alreadyExists(existing), nil
	}

	uc.log.Info("Card created", logger.StringField("card_number", card.Number))
	uc.metrics.CardCreation(models.CardCreated)

	return models.CreateResult{Status: models.CardCreated, Card: card.Summary()}, nil
}

func (uc *authorizer) alreadyExists(card *models.Card) models.CreateResult {
	uc.log.Warn("Card already exists", logger.StringField("card_number", card.Number))
	uc.metrics.CardCreation(models.CardAlreadyExists)

	return models.CreateResult{Status: models.CardAlreadyExists, Card: card.Summary()}
}

func (uc *authorizer) GetBalance(ctx context.Context, number string) (models.BalanceResult, error) {
	card, err := uc.repo.Find(ctx, number)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return models.BalanceResult{Status: models.BalanceNotFound}, nil
		}
		return models.BalanceResult{}, uc.storeError("Balance lookup failed", number, err)
	}

	return models.BalanceResult{Status: models.BalanceFound, Balance: card.Balance}, nil
}

func (uc *authorizer) Debit(ctx context.Context, op models.DebitOperation) (models.DebitStatus, error) {
	uc.logStart(op)

	if !validAmount(op.Amount) {
		uc.logDecline(op, models.DebitInvalidAmount)
		return models.DebitInvalidAmount, nil
	}

	var status models.DebitStatus
	err := uc.repo.WithTransaction(ctx, func(ctx context.Context, tx repository.CardTx) error {
		var err error
		status, err = uc.authorize(ctx, tx, op)
		if err != nil {
			return err
		}
		if !status.Approved() {
			return errDeclined
		}
		return nil
	})

	if err != nil && !errors.Is(err, errDeclined) {
		return "", uc.storeError("Debit failed", op.CardNumber, err)
	}

	if !status.Approved() {
		uc.logDecline(op, status)
		return status, nil
	}

	uc.log.Info("Debit approved",
		logger.StringField("card_number", op.CardNumber),
		logger.StringField("amount", op.Amount.StringFixed(2)))
	uc.metrics.Debit(status)

	return status, nil
}

// authorize runs under the card's row lock. Checks go existence, password,
// funds, in that order.
func (uc *authorizer) authorize(ctx context.Context, tx repository.CardTx, op models.DebitOperation) (models.DebitStatus, error) {
	card, err := tx.FindForUpdate(ctx, op.CardNumber)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return models.DebitCardNotFound, nil
		}
		return "", err
	}

	if !card.PasswordMatches(op.CardPassword) {
		return models.DebitInvalidCredential, nil
	}

	if op.Amount.GreaterThan(card.Balance) {
		uc.log.Warn("Insufficient funds",
			logger.StringField("balance", card.Balance.StringFixed(2)),
			logger.StringField("requested", op.Amount.StringFixed(2)))
		return models.DebitInsufficientFunds, nil
	}

	card.Balance = card.Balance.Sub(op.Amount)
	if err := tx.Save(ctx, card); err != nil {
		return "", err
	}

	return models.DebitApproved, nil
}

// validAmount accepts strictly positive amounts with at most two fractional
// digits.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(2))
}

func (uc *authorizer) logStart(op models.DebitOperation) {
	uc.log.Debug("Starting debit",
		logger.StringField("card_number", op.CardNumber),
		logger.StringField("amount", op.Amount.String()))
}

func (uc *authorizer) logDecline(op models.DebitOperation, status models.DebitStatus) {
	uc.log.Warn("Debit declined",
		logger.StringField("card_number", op.CardNumber),
		logger.StringField("status", string(status)))
	uc.metrics.Debit(status)
}

func (uc *authorizer) storeError(msg, number string, err error) error {
	uc.log.Error(msg,
		logger.StringField("card_number", number),
		logger.ErrorField("error", err))
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
