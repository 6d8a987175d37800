package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nzyazin/miniauthorizer/internal/core/handler"
	"github.com/Nzyazin/miniauthorizer/internal/core/middleware"
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository/memory"
	"github.com/Nzyazin/miniauthorizer/internal/core/usecase"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	cardNumber = "6549873025634501"
	password   = "1234"
)

func newRouter(uc usecase.Authorizer) *mux.Router {
	log := zap.NewNop()
	h := handler.NewCardHandler(uc, log)
	wrap := middleware.WithErrorHandler(log)

	router := mux.NewRouter()
	router.Handle("/cards", wrap(h.CreateCard)).Methods(http.MethodPost)
	router.Handle("/cards/{cardNumber}", wrap(h.GetBalance)).Methods(http.MethodGet)
	router.Handle("/transactions", wrap(h.Debit)).Methods(http.MethodPost)
	return router
}

func newMemoryRouter() *mux.Router {
	log := zap.NewNop()
	return newRouter(usecase.NewAuthorizer(memory.NewCardRepo(log), log, nil))
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createCardBody() string {
	return `{"cardNumber":"` + cardNumber + `","password":"` + password + `"}`
}

func debitBody(pass, amount string) string {
	return `{"cardNumber":"` + cardNumber + `","cardPassword":"` + pass + `","amount":` + amount + `}`
}

func TestCreateCardEndpoint(t *testing.T) {
	router := newMemoryRouter()

	rec := do(t, router, http.MethodPost, "/cards", createCardBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, createCardBody(), rec.Body.String())

	rec = do(t, router, http.MethodPost, "/cards", `{"cardNumber":"`+cardNumber+`","password":"other"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, createCardBody(), rec.Body.String())
}

func TestCreateCardEndpointRejectsInvalidBody(t *testing.T) {
	router := newMemoryRouter()

	for name, body := range map[string]string{
		"malformed json":   `{"cardNumber":`,
		"missing password": `{"cardNumber":"123"}`,
		"empty number":     `{"cardNumber":"","password":"1"}`,
		"number too long":  `{"cardNumber":"12345678901234567","password":"1"}`,
		"blank number":     `{"cardNumber":"   ","password":"1"}`,
		"blank password":   `{"cardNumber":"123","password":" \t "}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/cards", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetBalanceEndpoint(t *testing.T) {
	router := newMemoryRouter()

	rec := do(t, router, http.MethodGet, "/cards/0000000000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/cards", createCardBody()).Code)

	rec = do(t, router, http.MethodGet, "/cards/"+cardNumber, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.BalanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, handler.BalanceResponse{CardNumber: cardNumber, Balance: "500.00"}, resp)
}

func TestTransactionEndpointScenario(t *testing.T) {
	router := newMemoryRouter()
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/cards", createCardBody()).Code)

	steps := []struct {
		body       string
		wantCode   int
		wantStatus models.DebitStatus
		balance    string
	}{
		{debitBody(password, "10.00"), http.StatusCreated, models.DebitApproved, "490.00"},
		{debitBody(password, `"600.00"`), http.StatusUnprocessableEntity, models.DebitInsufficientFunds, "490.00"},
		{debitBody("0000", "10.00"), http.StatusUnprocessableEntity, models.DebitInvalidCredential, "490.00"},
		{`{"cardNumber":"0000000000000000","cardPassword":"1234","amount":10}`, http.StatusUnprocessableEntity, models.DebitCardNotFound, "490.00"},
	}

	for _, step := range steps {
		rec := do(t, router, http.MethodPost, "/transactions", step.body)
		require.Equal(t, step.wantCode, rec.Code, step.body)

		var resp handler.TransactionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, step.wantStatus, resp.Status)

		rec = do(t, router, http.MethodGet, "/cards/"+cardNumber, "")
		var balance handler.BalanceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
		assert.Equal(t, step.balance, balance.Balance)
	}
}

func TestTransactionEndpointRejectsInvalidInput(t *testing.T) {
	router := newMemoryRouter()
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/cards", createCardBody()).Code)

	for name, body := range map[string]string{
		"zero amount":       debitBody(password, "0"),
		"negative amount":   debitBody(password, "-5.00"),
		"three decimals":    debitBody(password, "1.001"),
		"missing amount":    `{"cardNumber":"` + cardNumber + `","cardPassword":"1234"}`,
		"missing password":  `{"cardNumber":"` + cardNumber + `","amount":1}`,
		"blank password":    `{"cardNumber":"` + cardNumber + `","cardPassword":"  ","amount":1}`,
		"blank card number": `{"cardNumber":" ","cardPassword":"1234","amount":1}`,
		"non numeric":       debitBody(password, `"ten"`),
		"malformed payload": `not json`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/transactions", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := do(t, router, http.MethodGet, "/cards/"+cardNumber, "")
	assert.Contains(t, rec.Body.String(), `"500.00"`)
}

type brokenAuthorizer struct{}

var errBroken = errors.New("store down")

func (brokenAuthorizer) CreateCard(context.Context, models.CardRequest) (models.CreateResult, error) {
	return models.CreateResult{}, errBroken
}

func (brokenAuthorizer) GetBalance(context.Context, string) (models.BalanceResult, error) {
	return models.BalanceResult{}, errBroken
}

func (brokenAuthorizer) Debit(context.Context, models.DebitOperation) (models.DebitStatus, error) {
	return "", errBroken
}

func TestInfrastructureFailuresAreInternalErrors(t *testing.T) {
	router := newRouter(brokenAuthorizer{})

	assert.Equal(t, http.StatusInternalServerError, do(t, router, http.MethodPost, "/cards", createCardBody()).Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, router, http.MethodGet, "/cards/"+cardNumber, "").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, router, http.MethodPost, "/transactions", debitBody(password, "1.00")).Code)
}
