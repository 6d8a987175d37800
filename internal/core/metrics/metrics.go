package metrics

import (
	"github.com/Nzyazin/miniauthorizer/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Authorizer counts authorizer outcomes. A nil *Authorizer records nothing.
type Authorizer struct {
	cardsCreated *prometheus.CounterVec
	debits       *prometheus.CounterVec
}

func NewAuthorizer(reg prometheus.Registerer) *Authorizer {
	m := &Authorizer{
		cardsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authorizer",
			Name:      "cards_created_total",
			Help:      "Card creation attempts by result.",
		}, []string{"result"}),
		debits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authorizer",
			Name:      "debits_total",
			Help:      "Debit attempts by authorization status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.cardsCreated, m.debits)
	return m
}

func (m *Authorizer) CardCreation(status models.CreateStatus) {
	if m == nil {
		return
	}
	m.cardsCreated.WithLabelValues(string(status)).Inc()
}

func (m *Authorizer) Debit(status models.DebitStatus) {
	if m == nil {
		return
	}
	m.debits.WithLabelValues(string(status)).Inc()
}
