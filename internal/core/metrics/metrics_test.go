package metrics_test

import (
	"testing"

	"github.com/Nzyazin/miniauthorizer/internal/core/metrics"
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuthorizerCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAuthorizer(reg)

	m.Debit(models.DebitApproved)
	m.Debit(models.DebitApproved)
	m.Debit(models.DebitInsufficientFunds)
	m.CardCreation(models.CardCreated)

	count, err := testutil.GatherAndCount(reg, "authorizer_debits_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "authorizer_cards_created_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilAuthorizerIsNoop(t *testing.T) {
	var m *metrics.Authorizer
	assert.NotPanics(t, func() {
		m.Debit(models.DebitApproved)
		m.CardCreation(models.CardAlreadyExists)
	})
}
