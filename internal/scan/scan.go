// Package scan is the continuous scan-cycle engine: it ticks a deployed
// flow on a fixed period, runs one full executor pass per tick, and enforces
// the wall-time budget and backpressure rules that keep a slow flow from
// piling up ticks behind it.
package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tagflow/engine/internal/executor"
	"github.com/tagflow/engine/internal/flow"
	"github.com/tagflow/engine/internal/metrics"
	"github.com/tagflow/engine/internal/obslog"
	"github.com/tagflow/engine/internal/quality"
	"github.com/tagflow/engine/internal/runtimecache"
	"github.com/tagflow/engine/internal/tagvalue"
)

// Loop drives one deployed flow's periodic invocation.
type Loop struct {
	doc      *flow.Document
	exec     *executor.Executor
	cache    *runtimecache.Cache
	log      *obslog.Logger
	period   time.Duration
	budget   time.Duration
	stats    *statsTracker
	limiter  *rate.Limiter

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Options configures a Loop's pacing.
type Options struct {
	Period         time.Duration
	BudgetFraction float64
}

// New builds a scan loop for doc. cache may be nil, in which case tag-output
// writeback to the zero-latency runtime cache is skipped.
func New(doc *flow.Document, exec *executor.Executor, cache *runtimecache.Cache, log *obslog.Logger, opts Options) *Loop {
	if opts.BudgetFraction <= 0 || opts.BudgetFraction > 1 {
		opts.BudgetFraction = 0.85
	}
	if opts.Period <= 0 {
		opts.Period = time.Second
	}
	return &Loop{
		doc:     doc,
		exec:    exec,
		cache:   cache,
		log:     log,
		period:  opts.Period,
		budget:  time.Duration(float64(opts.Period) * opts.BudgetFraction),
		stats:   newStatsTracker(),
		limiter: rate.NewLimiter(rate.Every(opts.Period), 1),
	}
}

// Stats returns a snapshot of this loop's resource statistics.
func (l *Loop) Stats() Stats {
	return l.stats.snapshot(l.period)
}

// Start runs the tick loop until ctx is canceled or Stop is called. It
// blocks the calling goroutine; callers typically invoke it via `go`.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.running = true
	l.mu.Unlock()

	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	var inFlight sync.Mutex
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return
		case <-ticker.C:
			// Backpressure: if the previous tick is still running, this
			// tick is dropped rather than queued.
			if !inFlight.TryLock() {
				l.stats.recordSkippedTick()
				metrics.RecordSkippedTick(l.doc.ID)
				continue
			}
			if !l.limiter.Allow() {
				inFlight.Unlock()
				l.stats.recordSkippedTick()
				metrics.RecordSkippedTick(l.doc.ID)
				continue
			}
			go func() {
				defer inFlight.Unlock()
				l.tick(ctx)
			}()
		}
	}
}

// Stop cancels the loop. A tick already in progress runs to completion.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Loop) tick(ctx context.Context) {
	ctx = obslog.WithScope(ctx, obslog.Scope{FlowID: l.doc.ID})
	tickCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.budget)
	defer cancel()

	started := time.Now()
	rec, err := l.exec.Run(tickCtx, l.doc, "")
	duration := time.Since(started)

	l.stats.recordCycle(duration, l.period)
	metrics.ObserveCycle(l.doc.ID, duration, l.period, err != nil)
	if mem := l.stats.snapshot(l.period).MemoryPeakBytes; mem > 0 {
		metrics.ObserveMemory(l.doc.ID, mem)
	}

	if duration > l.budget {
		l.log.Warn(ctx, fmt.Sprintf("scan: cycle exceeded budget: took %s, budget %s", duration, l.budget))
	}
	if err != nil {
		l.log.Error(ctx, err, "scan: tick failed")
		return
	}

	l.writeback(ctx, rec)
}

// writeback pushes tag-output node results into the zero-latency runtime
// cache so the next tick's tag-input nodes see them without a store round
// trip, mirroring how RuntimeTagValue is consulted on the hot path.
func (l *Loop) writeback(ctx context.Context, rec *flow.ExecutionRecord) {
	if l.cache == nil || rec == nil {
		return
	}
	for _, node := range l.doc.Nodes {
		if node.Type != "tag-output" {
			continue
		}
		tagID, _ := node.Data["tagId"].(string)
		if tagID == "" {
			continue
		}
		out, ok := rec.NodeOutputs[node.ID]
		if !ok || out.Error != "" {
			continue
		}
		l.cache.Set(tagID, tagvalue.TagValue{
			Value:     valueFromAny(out.Value),
			Quality:   quality.Code(out.Quality),
			Timestamp: out.CompletedAt,
		})
	}
}

// valueFromAny wraps a node output payload into the tagged Value union,
// matching the decode precedence used when reading stored rows.
func valueFromAny(v any) tagvalue.Value {
	switch t := v.(type) {
	case nil:
		return tagvalue.Null
	case float64:
		return tagvalue.Num(t)
	case string:
		return tagvalue.Str(t)
	default:
		return tagvalue.Structured(t)
	}
}
