package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_tracker_cycles_total", Help: "Completed tracking cycles",
	})
	mItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_tracker_items_total", Help: "Items processed by outcome",
	}, []string{"outcome"})
	mAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_tracker_alerts_created_total", Help: "Alerts created by type",
	}, []string{"type"})
	mFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricewatch_tracker_fetches_total", Help: "Source fetches by result",
	}, []string{"result"})
	mPanics = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_tracker_panics_total", Help: "Recovered panics in item pipelines",
	})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "pricewatch_tracker_cycle_duration_seconds", Help: "Cycle duration",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})
	mBatchDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "pricewatch_tracker_batch_duration_seconds", Help: "Batch duration",
		Buckets: prometheus.DefBuckets,
	})
)
