package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
)

const namespace = "carehub"

// LedgerMetrics counts wallet operations by outcome and the minor units they moved.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	amount     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger collectors; a nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Wallet ledger operations partitioned by outcome.",
	}, []string{"operation", "outcome"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_amount_minor_units_total",
		Help:      "Minor units moved by successful ledger operations.",
	}, []string{"operation"})
	reg.MustRegister(operations, amount)
	return &LedgerMetrics{operations: operations, amount: amount}
}

// Observe records one operation. Failures are labelled with their error code.
func (l *LedgerMetrics) Observe(operation string, amount int64, err error) {
	if l == nil || l.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	if err != nil {
		l.operations.WithLabelValues(op, strings.ToLower(string(pkgerrors.CodeOf(err)))).Inc()
		return
	}
	l.operations.WithLabelValues(op, "ok").Inc()
	if amount > 0 {
		l.amount.WithLabelValues(op).Add(float64(amount))
	}
}
