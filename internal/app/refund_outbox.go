/**
 * @description
 * Background dispatcher for the refund outbox. Compensating credits that
 * failed to apply inline are persisted as intents; this loop claims due
 * intents in batches and retries them with bounded exponential backoff until
 * each refund lands in the ledger.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/nanobanana/billing-service/internal/domain"
	"github.com/nanobanana/billing-service/internal/store"
)

const (
	defaultRefundBatchSize    = 50
	defaultRefundPollInterval = 5 * time.Second
	maxRefundRetryDelay       = 300
)

// RefundOutboxDispatcher drains the refund outbox.
type RefundOutboxDispatcher struct {
	repo         store.Repository
	batchSize    int
	pollInterval time.Duration
}

// NewRefundOutboxDispatcher creates a dispatcher with the given tuning.
// Non-positive values fall back to defaults.
func NewRefundOutboxDispatcher(repo store.Repository, batchSize int, pollInterval time.Duration) *RefundOutboxDispatcher {
	if batchSize <= 0 {
		batchSize = defaultRefundBatchSize
	}
	if pollInterval <= 0 {
		pollInterval = defaultRefundPollInterval
	}
	return &RefundOutboxDispatcher{
		repo:         repo,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// Run polls the outbox until the context is cancelled.
func (d *RefundOutboxDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.flushOnce(ctx); err != nil {
				log.Printf("level=error component=refund_outbox msg=\"flush failed\" err=%v", err)
			}
		}
	}
}

func (d *RefundOutboxDispatcher) flushOnce(ctx context.Context) error {
	intents, err := d.repo.ClaimPendingRefunds(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, intent := range intents {
		err := d.repo.AddCredits(ctx, intent.UserID, intent.Amount, domain.TransactionTypeRefund, intent.Description)
		if err != nil {
			retryAfter := refundRetryDelaySeconds(intent.Attempts)
			if markErr := d.repo.MarkRefundFailed(ctx, intent.ID, retryAfter, err.Error()); markErr != nil {
				log.Printf("level=error component=refund_outbox msg=\"failed to mark refund retry\" id=%d err=%v", intent.ID, markErr)
			}
			continue
		}
		if err := d.repo.MarkRefundApplied(ctx, intent.ID); err != nil {
			log.Printf("level=error component=refund_outbox msg=\"failed to mark refund applied\" id=%d err=%v", intent.ID, err)
		}
	}
	return nil
}

// refundRetryDelaySeconds doubles per attempt, capped at maxRefundRetryDelay.
func refundRetryDelaySeconds(attempt int) int {
	if attempt < 1 {
		return 1
	}
	if attempt > 8 {
		return maxRefundRetryDelay
	}
	delay := 1 << attempt
	if delay > maxRefundRetryDelay {
		return maxRefundRetryDelay
	}
	return delay
}
