package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsTrackerAccumulatesCycles(t *testing.T) {
	tr := newStatsTracker()
	tr.recordCycle(100*time.Millisecond, time.Second)
	tr.recordCycle(300*time.Millisecond, time.Second)

	snap := tr.snapshot(time.Second)
	assert.Equal(t, int64(2), snap.CyclesTotal)
	assert.Equal(t, 300*time.Millisecond, snap.MaxDuration)
	assert.Equal(t, 300*time.Millisecond, snap.LastDuration)
	assert.InDelta(t, 30.0, snap.EfficiencyPct, 0.01)
}

func TestStatsTrackerRecordsSkippedTicks(t *testing.T) {
	tr := newStatsTracker()
	tr.recordSkippedTick()
	tr.recordSkippedTick()

	assert.Equal(t, int64(2), tr.snapshot(time.Second).TicksSkipped)
}

func TestStatsTrackerZeroPeriodHasNoEfficiency(t *testing.T) {
	tr := newStatsTracker()
	tr.recordCycle(10*time.Millisecond, 0)
	assert.Equal(t, 0.0, tr.snapshot(0).EfficiencyPct)
}
