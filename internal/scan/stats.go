package scan

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is the resource-statistics snapshot spec.md §4.10 requires per flow:
// cycle throughput, scan efficiency, duration distribution, memory, and
// liveness.
type Stats struct {
	CyclesTotal      int64
	LastCycleTime    time.Time
	LastDuration     time.Duration
	AvgDuration      time.Duration
	MaxDuration      time.Duration
	EfficiencyPct    float64
	MemoryPeakBytes  uint64
	MemoryAvgBytes   uint64
	TicksSkipped     int64
	StartedAt        time.Time
}

// statsTracker accumulates Stats under a mutex; Loop owns one per flow.
type statsTracker struct {
	mu sync.RWMutex

	cyclesTotal     int64
	durationSum     time.Duration
	maxDuration     time.Duration
	lastDuration    time.Duration
	lastCycleTime   time.Time
	memorySum       uint64
	memoryPeak      uint64
	ticksSkipped    int64
	startedAt       time.Time
	proc            *process.Process
}

func newStatsTracker() *statsTracker {
	t := &statsTracker{startedAt: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		t.proc = proc
	}
	return t
}

func (t *statsTracker) recordCycle(duration time.Duration, period time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cyclesTotal++
	t.durationSum += duration
	t.lastDuration = duration
	t.lastCycleTime = time.Now()
	if duration > t.maxDuration {
		t.maxDuration = duration
	}

	if t.proc != nil {
		if info, err := t.proc.MemoryInfo(); err == nil {
			t.memorySum += info.RSS
			if info.RSS > t.memoryPeak {
				t.memoryPeak = info.RSS
			}
		}
	}
}

func (t *statsTracker) recordSkippedTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticksSkipped++
}

func (t *statsTracker) snapshot(period time.Duration) Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var avgDuration time.Duration
	var avgMemory uint64
	var efficiency float64
	if t.cyclesTotal > 0 {
		avgDuration = t.durationSum / time.Duration(t.cyclesTotal)
		avgMemory = t.memorySum / uint64(t.cyclesTotal)
	}
	if period > 0 {
		efficiency = 100 * t.lastDuration.Seconds() / period.Seconds()
	}

	return Stats{
		CyclesTotal:     t.cyclesTotal,
		LastCycleTime:   t.lastCycleTime,
		LastDuration:    t.lastDuration,
		AvgDuration:     avgDuration,
		MaxDuration:     t.maxDuration,
		EfficiencyPct:   efficiency,
		MemoryPeakBytes: t.memoryPeak,
		MemoryAvgBytes:  avgMemory,
		TicksSkipped:    t.ticksSkipped,
		StartedAt:       t.startedAt,
	}
}
