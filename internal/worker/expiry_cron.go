package worker

// expiry_cron.go
// Background goroutine that periodically cancels orders stuck in
// pending/pending past the configured TTL, releasing their reservations
// through the normal cancellation path. Without it, abandoned checkouts
// would hold reserved stock forever.

import (
	"context"
	"time"

	"teahaven/internal/dto"
	"teahaven/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	expiryTickInterval = time.Minute
	expiryBatchSize    = 50
)

// OrderCanceller is the slice of the order lifecycle the sweeper needs.
// Declared here so the worker package stays decoupled from the service layer.
type OrderCanceller interface {
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (*dto.OrderResponse, error)
}

// ExpiryCronConfig holds all dependencies for the sweeper goroutine.
type ExpiryCronConfig struct {
	OrderRepo       repository.OrderRepository
	Orders          OrderCanceller
	PendingOrderTTL time.Duration
}

// StartExpiryCron launches a background goroutine that ticks every minute and
// cancels stale pending orders in small batches. It respects the context for
// graceful shutdown.
func StartExpiryCron(ctx context.Context, cfg ExpiryCronConfig) {
	go func() {
		ticker := time.NewTicker(expiryTickInterval)
		defer ticker.Stop()

		log.Info().Dur("ttl", cfg.PendingOrderTTL).Msg("expiry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("expiry_cron: shutting down")
				return
			case <-ticker.C:
				sweepStaleOrders(ctx, cfg)
			}
		}
	}()
}

func sweepStaleOrders(ctx context.Context, cfg ExpiryCronConfig) {
	cutoff := time.Now().Add(-cfg.PendingOrderTTL)
	stale, err := cfg.OrderRepo.ListStalePending(ctx, cutoff, expiryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("expiry_cron: failed to query stale orders")
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Info().Int("count", len(stale)).Msg("expiry_cron: cancelling stale pending orders")

	for i := range stale {
		o := &stale[i]
		if _, err := cfg.Orders.Cancel(ctx, o.ID, "payment not completed within retention window"); err != nil {
			// A transition error here means the order moved on between the
			// query and the cancel; skip it, the next tick re-evaluates.
			log.Warn().
				Str("order_id", o.ID.String()).
				Err(err).
				Msg("expiry_cron: cancel skipped")
		}
	}
}
