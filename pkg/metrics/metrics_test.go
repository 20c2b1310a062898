package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSkip(t *testing.T) {
	before := testutil.ToFloat64(RowsSkipped.WithLabelValues(ReasonParse))
	RecordSkip(ReasonParse, 2)
	RecordSkip(ReasonParse, 0)
	after := testutil.ToFloat64(RowsSkipped.WithLabelValues(ReasonParse))
	if after-before != 2 {
		t.Errorf("rows skipped delta = %v, want 2", after-before)
	}
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(Requests.WithLabelValues("content", OutcomeOK))
	RecordRequest("content", OutcomeOK, 10*time.Millisecond)
	if got := testutil.ToFloat64(Requests.WithLabelValues("content", OutcomeOK)); got-before != 1 {
		t.Errorf("requests delta = %v, want 1", got-before)
	}
}

func TestSetBreakerState(t *testing.T) {
	SetBreakerState("duckdb", 2)
	if got := testutil.ToFloat64(BreakerState.WithLabelValues("duckdb")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}
