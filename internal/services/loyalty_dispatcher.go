package services

import (
	"context"
	"time"
)

// LoyaltyDispatcher retries pending loyalty events in the background
type LoyaltyDispatcher struct {
	loyalty   LoyaltyService
	interval  time.Duration
	batchSize int
}

// NewLoyaltyDispatcher creates a dispatcher polling every interval
func NewLoyaltyDispatcher(loyalty LoyaltyService, interval time.Duration) *LoyaltyDispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &LoyaltyDispatcher{loyalty: loyalty, interval: interval, batchSize: 100}
}

// Run polls until ctx is cancelled
func (d *LoyaltyDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	log.WithField("interval", d.interval.String()).Info("Loyalty dispatcher started")
	for {
		select {
		case <-ctx.Done():
			log.Info("Loyalty dispatcher stopped")
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *LoyaltyDispatcher) tick(ctx context.Context) {
	processed, err := d.loyalty.ProcessPending(ctx, d.batchSize)
	if err != nil && ctx.Err() == nil {
		log.WithError(err).Error("Loyalty dispatcher pass failed")
		return
	}
	if processed > 0 {
		log.WithField("processed", processed).Info("Loyalty events processed")
	}
}
