package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(QuotaAllowedTotal)
	QuotaAllowedTotal.Inc()
	after := testutil.ToFloat64(QuotaAllowedTotal)
	if after != before+1 {
		t.Fatalf("QuotaAllowedTotal did not increment: before=%v after=%v", before, after)
	}
}

func TestPoolSlotsCreatedTotalLabeled(t *testing.T) {
	before := testutil.ToFloat64(PoolSlotsCreatedTotal.WithLabelValues("meet"))
	PoolSlotsCreatedTotal.WithLabelValues("meet").Inc()
	after := testutil.ToFloat64(PoolSlotsCreatedTotal.WithLabelValues("meet"))
	if after != before+1 {
		t.Fatalf("PoolSlotsCreatedTotal{meet} did not increment: before=%v after=%v", before, after)
	}
}
