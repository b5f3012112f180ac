package presence

import (
	"context"
	"sync"
	"time"

	"github.com/iamasit07/chat-presence/internal/domain"
	"go.uber.org/zap"
)

// Ticker is the part of the reconciler the worker drives.
type Ticker interface {
	RunTick(ctx context.Context)
}

type Worker struct {
	Reconciler Ticker
	Interval   time.Duration
	Logger     *zap.Logger

	ticks   sync.WaitGroup
	stopped chan struct{}
}

func NewWorker(r Ticker, interval time.Duration, log *zap.Logger) *Worker {
	if interval <= 0 {
		interval = domain.DefaultTickInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{Reconciler: r, Interval: interval, Logger: log}
}

// Start fires a tick right away and then one per interval until ctx is done.
// Each tick runs on its own goroutine; overlapping ticks are dropped by the
// reconciler itself. Cancelling ctx stops scheduling but lets a running
// tick finish its passes; use Wait to block on it.
func (w *Worker) Start(ctx context.Context) {
	tickCtx := context.WithoutCancel(ctx)
	w.stopped = make(chan struct{})
	w.runTick(tickCtx)

	ticker := time.NewTicker(w.Interval)
	go func() {
		defer close(w.stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.Logger.Info("presence worker stopped")
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					continue
				}
				w.runTick(tickCtx)
			}
		}
	}()
	w.Logger.Info("presence worker started", zap.Duration("interval", w.Interval))
}

func (w *Worker) runTick(ctx context.Context) {
	w.ticks.Add(1)
	go func() {
		defer w.ticks.Done()
		w.Reconciler.RunTick(ctx)
	}()
}

// Wait blocks until the worker has stopped scheduling and every started
// tick has returned, or until ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		if w.stopped != nil {
			<-w.stopped
		}
		w.ticks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
