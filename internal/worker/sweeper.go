package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
)

const sweepBatchSize = 100

// Reconciler finalizes one order from the provider's verdict.
type Reconciler interface {
	Reconcile(ctx context.Context, req services.ReconcileRequest) (*services.ReconcileResult, error)
}

// PendingSweeper periodically reconciles orders that stayed pending longer
// than MaxAge, covering customers who never came back from the provider and
// callbacks that never arrived. Each sweep takes the next batch after the
// previous one and wraps around once the backlog is exhausted, so abandoned
// sessions that stay pending cannot starve newer orders.
type PendingSweeper struct {
	orders     repositories.OrderRepository
	reconciler Reconciler
	interval   time.Duration
	maxAge     time.Duration
	batchSize  int
	now        func() time.Time

	mu     sync.Mutex
	cursor repositories.PendingCursor
}

// NewPendingSweeper creates a sweeper. An interval of zero disables Run.
func NewPendingSweeper(orders repositories.OrderRepository, reconciler Reconciler, interval, maxAge time.Duration) *PendingSweeper {
	return &PendingSweeper{
		orders:     orders,
		reconciler: reconciler,
		interval:   interval,
		maxAge:     maxAge,
		batchSize:  sweepBatchSize,
		now:        time.Now,
	}
}

// Enabled reports whether Run does anything.
func (w *PendingSweeper) Enabled() bool {
	return w.interval > 0
}

// Run sweeps on every tick until ctx is cancelled.
func (w *PendingSweeper) Run(ctx context.Context) {
	if !w.Enabled() {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("Pending order sweeper started (interval %s, max age %s)", w.interval, w.maxAge)
	for {
		select {
		case <-ctx.Done():
			log.Println("Pending order sweeper stopped")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				log.Printf("Pending order sweep failed: %v", err)
			}
		}
	}
}

// Sweep reconciles the next batch of stale pending orders and returns how
// many were finalized. A failure on one order does not stop the batch.
func (w *PendingSweeper) Sweep(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	stale, err := w.nextBatch(ctx)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	log.Printf("Found %d stale pending orders", len(stale))
	finalized := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return finalized, ctx.Err()
		}
		result, err := w.reconciler.Reconcile(ctx, services.ReconcileRequest{
			TxRef:  order.TxRef,
			Source: services.SourceSweeper,
		})
		if err != nil {
			log.Printf("Failed to reconcile stale order %s: %v", order.TxRef, err)
			continue
		}
		if result.Finalized {
			finalized++
		}
	}
	return finalized, nil
}

// nextBatch advances the cursor past the returned batch. A short batch means
// the backlog ended, so the next sweep starts again from the oldest order.
func (w *PendingSweeper) nextBatch(ctx context.Context) ([]models.Order, error) {
	cutoff := w.now().Add(-w.maxAge)
	stale, err := w.orders.ListPendingBefore(ctx, cutoff, w.cursor, w.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	if len(stale) == 0 && !w.cursor.IsZero() {
		w.cursor = repositories.PendingCursor{}
		stale, err = w.orders.ListPendingBefore(ctx, cutoff, w.cursor, w.batchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending orders: %w", err)
		}
	}

	if len(stale) < w.batchSize {
		w.cursor = repositories.PendingCursor{}
	} else {
		w.cursor = repositories.CursorAt(stale[len(stale)-1])
	}
	return stale, nil
}
