package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Pricewatch/internal/domain/item"
	"github.com/NordCoder/Pricewatch/internal/obs"
)

const (
	defaultBatchSize   = 50
	defaultConcurrency = 10
	defaultDuePerTier  = 1000
)

// RunCycle processes every due item once: batches run one after another, items
// inside a batch run concurrently. Item failures end up in the report.
func (t *Tracker) RunCycle(ctx context.Context) CycleReport {
	start := t.now()
	ctx, span := obs.Tracer().Start(ctx, "tracker.cycle")
	defer span.End()
	log := obs.WithTrace(ctx, t.log)

	rep := CycleReport{StartedAt: start}
	due := t.gatherDue(ctx, &rep)
	rep.Total = len(due)
	t.runBatches(ctx, due, &rep)

	rep.Duration = t.now().Sub(start)
	mCycles.Inc()
	mCycleDur.Observe(rep.Duration.Seconds())
	span.SetAttributes(
		attribute.Int("cycle.total", rep.Total),
		attribute.Int("cycle.updated", rep.Updated),
		attribute.Int("cycle.errored", rep.Errored),
		attribute.Int("cycle.alerts", rep.AlertsCreated),
	)
	log.Info("cycle finished",
		zap.Int("total", rep.Total),
		zap.Int("successful", rep.Successful),
		zap.Int("updated", rep.Updated),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("errored", rep.Errored),
		zap.Int("alerts", rep.AlertsCreated),
		zap.Int("batches", rep.Batches),
		zap.Bool("aborted", rep.Aborted),
		zap.Duration("elapsed", rep.Duration))
	return rep
}

// gatherDue queries each tier and drops ids already seen.
func (t *Tracker) gatherDue(ctx context.Context, rep *CycleReport) []*item.TrackedItem {
	limit := t.sched.MaxDuePerTier
	if limit <= 0 {
		limit = defaultDuePerTier
	}
	now := t.now()
	seen := make(map[string]struct{})
	var out []*item.TrackedItem
	for _, freq := range item.Frequencies {
		list, err := t.items.FindDue(ctx, freq, now.Add(-freq.Interval()), limit)
		if err != nil {
			t.log.Error("find due items", zap.String("frequency", string(freq)), zap.Error(err))
			rep.Errors = append(rep.Errors, ItemError{Stage: StageQuery, Err: fmt.Errorf("find due %s: %w", freq, err)})
			continue
		}
		for _, it := range list {
			if _, dup := seen[it.ID]; dup {
				continue
			}
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

// runBatches splits items into batches of BatchSize and runs them in order,
// waiting BatchDelay between two batches.
func (t *Tracker) runBatches(ctx context.Context, items []*item.TrackedItem, rep *CycleReport) {
	size := t.sched.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	for i, batch := range chunk(items, size) {
		if i > 0 {
			if err := t.sleep(ctx, t.sched.BatchDelay); err != nil {
				rep.Aborted = true
				return
			}
		}
		if ctx.Err() != nil {
			rep.Aborted = true
			return
		}
		t.runBatch(ctx, i, batch, rep)
		rep.Batches++
	}
}

func (t *Tracker) runBatch(ctx context.Context, idx int, batch []*item.TrackedItem, rep *CycleReport) {
	t0 := time.Now()
	ctx, span := obs.Tracer().Start(ctx, "tracker.batch", trace.WithAttributes(
		attribute.Int("batch.index", idx),
		attribute.Int("batch.size", len(batch)),
	))
	defer span.End()

	limit := t.sched.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(limit)
	for _, it := range batch {
		p.Go(func() {
			res := t.process(ctx, it)
			mu.Lock()
			rep.add(res)
			mu.Unlock()
		})
	}
	p.Wait()
	mBatchDur.Observe(time.Since(t0).Seconds())
}

func chunk(items []*item.TrackedItem, size int) [][]*item.TrackedItem {
	var out [][]*item.TrackedItem
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
