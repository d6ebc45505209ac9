package reclaimer

import (
	"context"
	"math/rand"
	"time"

	"tixly/internal/orders"
	"tixly/internal/reservations"
	"tixly/internal/shared/config"
	"tixly/pkg/logger"
)

// JobProcessor runs the periodic reclamation sweeps: expired reservation
// holds go back to the pool, and pending orders whose payment window lapsed
// are expired with their stock restocked. Sweeps are best-effort; anything a
// sweep misses is caught by the next one.
type JobProcessor struct {
	reservationsSvc reservations.Service
	ordersSvc       orders.Service
	config          config.ReclaimerConfig
	done            chan struct{}
}

// NewJobProcessor creates a new reclamation processor
func NewJobProcessor(reservationsSvc reservations.Service, ordersSvc orders.Service, cfg config.ReclaimerConfig) *JobProcessor {
	return &JobProcessor{
		reservationsSvc: reservationsSvc,
		ordersSvc:       ordersSvc,
		config:          cfg,
		done:            make(chan struct{}),
	}
}

// Start starts both sweep loops.
func (jp *JobProcessor) Start(ctx context.Context) {
	log := logger.GetDefault()
	log.InfoWithContext(ctx, "starting reclamation sweeps", map[string]interface{}{
		"reservation_interval": jp.config.ReservationInterval.String(),
		"order_interval":       jp.config.OrderInterval.String(),
		"batch_size":           jp.config.BatchSize,
	})

	go jp.runSweep(ctx, jp.config.ReservationInterval, "reservations", jp.sweepReservations)
	go jp.runSweep(ctx, jp.config.OrderInterval, "orders", jp.sweepOrders)
}

// Stop stops both sweep loops.
func (jp *JobProcessor) Stop() {
	close(jp.done)
	logger.GetDefault().Info("reclamation sweeps stopped")
}

// runSweep drives one sweep on its interval. A random jitter is added before
// each pass so multiple instances do not all hit the same rows at once.
func (jp *JobProcessor) runSweep(ctx context.Context, interval time.Duration, name string, sweep func(context.Context) (int, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if jp.config.Jitter > 0 {
				jitter := time.Duration(rand.Int63n(int64(jp.config.Jitter)))
				select {
				case <-time.After(jitter):
				case <-jp.done:
					return
				case <-ctx.Done():
					return
				}
			}
			jp.runOnce(ctx, name, sweep)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (jp *JobProcessor) runOnce(ctx context.Context, name string, sweep func(context.Context) (int, error)) {
	start := time.Now()
	reclaimed, err := sweep(ctx)
	if err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "reclamation sweep failed", err, map[string]interface{}{
			"sweep": name,
		})
		return
	}
	if reclaimed > 0 {
		logger.GetDefault().LogReclaim(ctx, name, reclaimed, time.Since(start))
	}
}

func (jp *JobProcessor) sweepReservations(ctx context.Context) (int, error) {
	return jp.reservationsSvc.ReleaseExpiredBatch(ctx, jp.config.BatchSize)
}

func (jp *JobProcessor) sweepOrders(ctx context.Context) (int, error) {
	return jp.ordersSvc.ExpireStaleBatch(ctx, jp.config.BatchSize)
}
