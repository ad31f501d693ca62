package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/forecastr/pkg/logger"
)

// Worker is one unit of background work executed periodically
type Worker interface {
	// Name returns worker name for logging
	Name() string
	// Run executes one iteration of work
	Run(ctx context.Context) error
}

// Options tunes a periodic worker
type Options struct {
	Interval time.Duration
	// Timeout bounds a single Run; zero means the parent context only
	Timeout time.Duration
	// SkipInitialRun waits one interval before the first Run
	SkipInitialRun bool
}

// PeriodicWorker runs a Worker on a fixed interval until its context ends
type PeriodicWorker struct {
	worker Worker
	opts   Options
	wg     sync.WaitGroup

	mu       sync.Mutex
	runs     int
	failures int
	lastErr  error
	lastRun  time.Time
}

// NewPeriodicWorker creates new periodic worker
func NewPeriodicWorker(w Worker, opts Options) *PeriodicWorker {
	return &PeriodicWorker{worker: w, opts: opts}
}

// Start launches the loop in a goroutine
func (pw *PeriodicWorker) Start(ctx context.Context) {
	pw.wg.Add(1)
	go pw.loop(ctx)
}

// Stop waits for the loop to exit, at most timeout
func (pw *PeriodicWorker) Stop(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		pw.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker stopped", zap.String("worker", pw.worker.Name()))
		return true
	case <-time.After(timeout):
		logger.Warn("worker stop timeout", zap.String("worker", pw.worker.Name()))
		return false
	}
}

// Stats reports run counters
func (pw *PeriodicWorker) Stats() (runs, failures int, lastRun time.Time, lastErr error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.runs, pw.failures, pw.lastRun, pw.lastErr
}

func (pw *PeriodicWorker) loop(ctx context.Context) {
	defer pw.wg.Done()

	logger.Info("worker started",
		zap.String("worker", pw.worker.Name()),
		zap.Duration("interval", pw.opts.Interval),
	)

	if !pw.opts.SkipInitialRun {
		pw.runOnce(ctx)
	}

	ticker := time.NewTicker(pw.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping", zap.String("worker", pw.worker.Name()))
			return
		case <-ticker.C:
			pw.runOnce(ctx)
		}
	}
}

// runOnce executes a single iteration; failures are logged and the loop continues
func (pw *PeriodicWorker) runOnce(ctx context.Context) {
	err := RunOnce(ctx, pw.worker, pw.opts.Timeout)

	pw.mu.Lock()
	pw.runs++
	pw.lastRun = time.Now()
	pw.lastErr = err
	if err != nil {
		pw.failures++
	}
	pw.mu.Unlock()

	if err != nil {
		logger.Error("worker execution failed",
			zap.String("worker", pw.worker.Name()),
			zap.Error(err),
		)
	}
}

// RunOnce executes one iteration with an optional timeout and recovers panics into errors
func RunOnce(ctx context.Context, w Worker, timeout time.Duration) (err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %s panicked: %v", w.Name(), r)
		}
	}()
	return w.Run(ctx)
}

// Group manages several periodic workers with a shared lifecycle
type Group struct {
	mu      sync.Mutex
	workers []*PeriodicWorker
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewGroup creates worker group bound to ctx
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{ctx: ctx, cancel: cancel}
}

// Add registers a worker; it starts with the group
func (g *Group) Add(w Worker, opts Options) *PeriodicWorker {
	g.mu.Lock()
	defer g.mu.Unlock()

	pw := NewPeriodicWorker(w, opts)
	g.workers = append(g.workers, pw)
	return pw
}

// Start launches all registered workers
func (g *Group) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, pw := range g.workers {
		pw.Start(g.ctx)
	}
	logger.Info("worker group started", zap.Int("workers", len(g.workers)))
}

// Stop cancels the group context and waits for every worker
func (g *Group) Stop(timeout time.Duration) {
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, pw := range g.workers {
		pw.Stop(timeout)
	}
	logger.Info("worker group stopped")
}
