package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
)

func TestLedgerMetricsLabelsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewLedgerMetrics(reg)

	recorder.Observe("debit", 300, nil)
	recorder.Observe("debit", 200, nil)
	recorder.Observe("debit", 900, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "short"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	family := findMetricFamily(mfs, "carehub_ledger_operations_total")
	if family == nil {
		t.Fatal("operations family missing")
	}
	var ok, failed float64
	for _, metric := range family.GetMetric() {
		switch {
		case matchesLabel(metric.GetLabel(), "outcome", "ok"):
			ok = metric.GetCounter().GetValue()
		case matchesLabel(metric.GetLabel(), "outcome", "insufficient_funds"):
			failed = metric.GetCounter().GetValue()
		}
	}
	if ok != 2 || failed != 1 {
		t.Fatalf("expected ok=2 failed=1, got ok=%f failed=%f", ok, failed)
	}

	if got, err := fetchCounterValue(mfs, "carehub_ledger_amount_minor_units_total", "operation", "debit"); err != nil {
		t.Fatalf("fetch amount: %v", err)
	} else if got != 500 {
		t.Fatalf("expected 500 minor units, got %f", got)
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewHTTPMetrics(reg)
	recorder.Observe("POST", "/api/loans", 201, 20*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "carehub_http_request_duration_seconds", "route", "/api/loans"); err != nil {
		t.Fatalf("fetch latency: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected positive latency sum, got %f", got)
	}
}

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := NewOutboxMetrics(reg)

	recorder.Batch(3)
	recorder.Event("deposit_received", RelayPublished)
	recorder.Event("deposit_received", RelayPublished)
	recorder.Event("", RelayDeadLettered)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	family := findMetricFamily(mfs, "carehub_outbox_events_total")
	if family == nil {
		t.Fatal("outbox family missing")
	}
	var published, dead float64
	for _, metric := range family.GetMetric() {
		switch {
		case matchesLabel(metric.GetLabel(), "outcome", RelayPublished):
			published = metric.GetCounter().GetValue()
		case matchesLabel(metric.GetLabel(), "event_type", "unknown"):
			dead = metric.GetCounter().GetValue()
		}
	}
	if published != 2 || dead != 1 {
		t.Fatalf("expected published=2 dead=1, got %f %f", published, dead)
	}
	if findMetricFamily(mfs, "carehub_outbox_batch_size") == nil {
		t.Fatal("batch histogram missing")
	}

	var nilRecorder *OutboxMetrics
	nilRecorder.Event("x", RelayRetried)
	NewOutboxMetrics(nil).Batch(1)
}

func TestServeWithoutAddrReturns(t *testing.T) {
	if err := Serve(context.Background(), "", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
