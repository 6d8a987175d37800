package handler

import (
	"fmt"
	"net/http"

	"github.com/Nzyazin/miniauthorizer/internal/core/logger"
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/Nzyazin/miniauthorizer/internal/core/usecase"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/gorilla/mux"
)

type CardHandler struct {
	usecase  usecase.Authorizer
	log      logger.Logger
	validate *validator.Validate
}

type BalanceResponse struct {
	CardNumber string `json:"cardNumber"`
	Balance    string `json:"balance"`
}

type TransactionResponse struct {
	Status models.DebitStatus `json:"status"`
}

func NewCardHandler(usecase usecase.Authorizer, log logger.Logger) *CardHandler {
	validate := validator.New()
	// whitespace-only numbers and passwords are rejected like empty ones
	if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return &CardHandler{usecase: usecase, log: log, validate: validate}
}

// CreateCard answers 201 with the new card or 422 with the card that
// already owns the number.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) error {
	var req models.CardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.log.Warn("Failed to decode card request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return nil
	}

	if err := h.validate.Struct(req); err != nil {
		h.log.Warn("Invalid card request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "cardNumber (up to 16 characters) and password are required")
		return nil
	}

	res, err := h.usecase.CreateCard(r.Context(), req)
	if err != nil {
		return err
	}

	switch res.Status {
	case models.CardCreated:
		respondWithJSON(w, http.StatusCreated, res.Card)
	case models.CardAlreadyExists:
		respondWithJSON(w, http.StatusUnprocessableEntity, res.Card)
	default:
		return fmt.Errorf("unexpected create status %q", res.Status)
	}
	return nil
}

func (h *CardHandler) GetBalance(w http.ResponseWriter, r *http.Request) error {
	number := mux.Vars(r)["cardNumber"]

	res, err := h.usecase.GetBalance(r.Context(), number)
	if err != nil {
		return err
	}

	switch res.Status {
	case models.BalanceFound:
		respondWithJSON(w, http.StatusOK, BalanceResponse{CardNumber: number, Balance: res.Formatted()})
	case models.BalanceNotFound:
		h.log.Warn("Card not found", logger.StringField("card_number", number))
		respondWithError(w, http.StatusNotFound, "card not found")
	default:
		return fmt.Errorf("unexpected balance status %q", res.Status)
	}
	return nil
}

// Debit answers 201 when approved and 422 with the decline code otherwise.
func (h *CardHandler) Debit(w http.ResponseWriter, r *http.Request) error {
	var op models.DebitOperation
	if err := decodeJSON(w, r, &op); err != nil {
		h.log.Warn("Failed to decode transaction request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return nil
	}

	if err := h.validate.Struct(op); err != nil {
		h.log.Warn("Invalid transaction request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "cardNumber and cardPassword are required")
		return nil
	}

	if !op.Amount.IsPositive() || !op.Amount.Equal(op.Amount.Truncate(2)) {
		h.log.Warn("Invalid amount", logger.StringField("amount", op.Amount.String()))
		respondWithError(w, http.StatusBadRequest, "amount must be positive with at most two decimal places")
		return nil
	}

	status, err := h.usecase.Debit(r.Context(), op)
	if err != nil {
		return err
	}

	code := http.StatusCreated
	if !status.Approved() {
		code = http.StatusUnprocessableEntity
	}
	respondWithJSON(w, code, TransactionResponse{Status: status})
	return nil
}
