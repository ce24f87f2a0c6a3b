package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/services/tracker"
)

type Cycler interface {
	RunCycle(ctx context.Context) tracker.CycleReport
}

type Status struct {
	IsRunning   bool
	LastCycleAt time.Time
	LastReport  *tracker.CycleReport
	Cycles      int
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

var (
	mRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pricewatch_scheduler_running", Help: "1 while the interval loop is active",
	})
	mTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_scheduler_ticks_total", Help: "Cycles started by the scheduler",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricewatch_scheduler_errors_total", Help: "Cycles that panicked",
	})
	mLoopDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "pricewatch_scheduler_tick_duration_seconds", Help: "Scheduler tick duration",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})
)

// Scheduler drives the batch runner on a fixed interval. One instance per process.
type Scheduler struct {
	log    *zap.Logger
	runner Cycler
	cfg    config.SchedCfg

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	cycleMu     sync.Mutex
	stateMu     sync.RWMutex
	lastCycleAt time.Time
	lastReport  *tracker.CycleReport
	cycles      int
}

func New(log *zap.Logger, runner Cycler, cfg config.SchedCfg) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	return &Scheduler{
		log:    log.With(zap.String("component", "scheduler")),
		runner: runner,
		cfg:    cfg,
	}
}

// Start launches the loop: one cycle right away, then one per interval. Cycles
// run under ctx. It returns false when the loop was already running.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Info("scheduler already running")
		return false
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	mRunning.Set(1)
	s.log.Info("scheduler started", zap.Duration("interval", s.cfg.Interval))

	go s.run(ctx, s.stop, s.done)
	return true
}

func (s *Scheduler) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			return
		case <-stop:
			return
		case <-ticker.C:
			select {
			case <-stop:
				return
			default:
			}
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		mRunning.Set(0)
		s.log.Info("scheduler stopped by context")
	}
}

// Stop ends the loop and waits for an in-flight cycle to finish, or for ctx.
// The cycle itself is not interrupted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		done := s.done
		s.mu.Unlock()
		if done != nil {
			return waitDone(ctx, done)
		}
		return nil
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()
	mRunning.Set(0)

	if err := waitDone(ctx, done); err != nil {
		s.log.Warn("scheduler stop timed out waiting for cycle", zap.Error(err))
		return err
	}
	s.log.Info("scheduler stopped")
	return nil
}

func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs a single cycle now, serialized with the loop's cycles.
func (s *Scheduler) RunOnce(ctx context.Context) tracker.CycleReport {
	return s.tick(ctx)
}

func (s *Scheduler) tick(ctx context.Context) (rep tracker.CycleReport) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	mTicks.Inc()
	defer func() {
		if p := recover(); p != nil {
			mErr.Inc()
			s.log.Error("cycle panic", zap.Any("panic", p), zap.Stack("stack"))
			rep = tracker.CycleReport{StartedAt: start, Duration: time.Since(start), Aborted: true}
		}
		mLoopDur.Observe(time.Since(start).Seconds())
		s.stateMu.Lock()
		s.lastCycleAt = start
		r := rep
		s.lastReport = &r
		s.cycles++
		s.stateMu.Unlock()
	}()

	return s.runner.RunCycle(ctx)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return Status{
		IsRunning:   running,
		LastCycleAt: s.lastCycleAt,
		LastReport:  s.lastReport,
		Cycles:      s.cycles,
		Interval:    s.cfg.Interval,
		BatchSize:   s.cfg.BatchSize,
		Concurrency: s.cfg.Concurrency,
	}
}
