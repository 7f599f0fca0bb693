package worker

import (
	"context"
	"sync"
	"time"

	"github.com/gbwallet/ledger/internal/observability"
	"github.com/gbwallet/ledger/internal/service"
	"go.uber.org/zap"
)

// ConservationWorker runs periodic ledger integrity sweeps.
type ConservationWorker struct {
	svc      *service.ConservationService
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewConservationWorker constructs a worker with a default daily interval.
func NewConservationWorker(svc *service.ConservationService) *ConservationWorker {
	return &ConservationWorker{
		svc:      svc,
		interval: 24 * time.Hour,
		stopCh:   make(chan struct{}),
	}
}

// WithInterval updates the run interval.
func (w *ConservationWorker) WithInterval(interval time.Duration) *ConservationWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and runs the sweep at the configured interval.
func (w *ConservationWorker) Start(ctx context.Context) {
	zap.L().Info("conservation worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately at startup.
	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("conservation worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("conservation worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *ConservationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ConservationWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *ConservationWorker) runOnce(ctx context.Context) {
	if err := w.svc.Run(ctx); err != nil {
		observability.IncrementWorkerRun("conservation", "failed")
		zap.L().Error("conservation run failed", zap.Error(err))
		return
	}
	observability.IncrementWorkerRun("conservation", "success")
}
