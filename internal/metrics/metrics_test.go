package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCycleIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(cyclesTotal.WithLabelValues("flow-metrics-test"))
	ObserveCycle("flow-metrics-test", 50*time.Millisecond, 1000*time.Millisecond, false)
	after := testutil.ToFloat64(cyclesTotal.WithLabelValues("flow-metrics-test"))
	assert.Equal(t, before+1, after)
}

func TestObserveCycleSetsEfficiency(t *testing.T) {
	ObserveCycle("flow-efficiency-test", 500*time.Millisecond, 1000*time.Millisecond, false)
	assert.Equal(t, 50.0, testutil.ToFloat64(scanEfficiency.WithLabelValues("flow-efficiency-test")))
}

func TestObserveCycleRecordsError(t *testing.T) {
	before := testutil.ToFloat64(cycleErrors.WithLabelValues("flow-error-test"))
	ObserveCycle("flow-error-test", 10*time.Millisecond, 1000*time.Millisecond, true)
	after := testutil.ToFloat64(cycleErrors.WithLabelValues("flow-error-test"))
	assert.Equal(t, before+1, after)
}
