/**
 * @description
 * The metered-operation coordinator. Every image generation follows the same
 * protocol: quote the credit cost, check the balance, debit, perform the
 * upstream call, and either finalize on success or apply a compensating
 * refund on failure. The ledger must never keep a charge for work that was
 * not delivered.
 *
 * Failure semantics:
 * - Debit failures abort before the upstream call is dispatched.
 * - Upstream failures after the debit trigger exactly one compensating
 *   refund of the exact amount debited; when the inline refund itself fails
 *   the intent is persisted to the refund outbox for retry.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nanobanana/billing-service/internal/domain"
	"github.com/nanobanana/billing-service/internal/store"
	"github.com/nanobanana/billing-service/pkg/modelclient"
)

// InsufficientCreditsError is returned when the user cannot afford the
// requested operation. It carries the amounts so the handler can surface
// them in the 402 payload.
type InsufficientCreditsError struct {
	Required int
	Current  int
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %d, current %d", e.Required, e.Current)
}

// UpstreamError wraps a failure of the model API after the refund has been
// handled, so the handler can map it to a 500 without leaking internals.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("image generation failed: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// GenerateImage runs one metered image-generation request for the user.
func (s *Service) GenerateImage(ctx context.Context, userID string, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	model := req.Model
	if model == "" {
		model = modelclient.DefaultModel
	}

	// 1. Quote
	cost := domain.GenerationCost(model)

	// 2. Check. The conditional debit below is what actually guards against
	// over-draft under concurrency; this read exists to fail fast with the
	// required/current amounts before any mutation.
	balance, err := s.repo.GetCreditBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read credit balance: %w", err)
	}
	if balance < cost {
		return nil, &InsufficientCreditsError{Required: cost, Current: balance}
	}

	// 3. Debit
	description := fmt.Sprintf("Image generation (%s)", model)
	err = s.repo.AddCredits(ctx, userID, -cost, domain.TransactionTypeImageGeneration, description)
	if err != nil {
		if errors.Is(err, store.ErrInsufficientCredits) {
			// A concurrent debit won the race between check and debit.
			current, readErr := s.repo.GetCreditBalance(ctx, userID)
			if readErr != nil {
				current = 0
			}
			return nil, &InsufficientCreditsError{Required: cost, Current: current}
		}
		return nil, fmt.Errorf("failed to debit credits: %w", err)
	}

	// 4. Perform
	generated, err := s.modelClient.Generate(ctx, modelclient.GenerateRequest{
		Image:  req.Image,
		Prompt: req.Prompt,
		Model:  model,
	})
	if err != nil {
		s.refundCredits(ctx, userID, cost, fmt.Sprintf("Refund for failed generation: %v", err))
		return nil, &UpstreamError{Err: err}
	}

	// 5/6. Interpret happened in the model client; finalize with a post-debit
	// balance read. A read failure here must not fail the delivered work.
	remaining, err := s.repo.GetCreditBalance(ctx, userID)
	if err != nil {
		log.Printf("level=warn component=generation msg=\"failed to read post-debit balance\" user_id=%s err=%v", userID, err)
		remaining = balance - cost
	}

	return &domain.GenerateResult{
		Content:          generated.Content,
		ImageURL:         generated.ImageURL,
		CreditsUsed:      cost,
		RemainingCredits: remaining,
	}, nil
}

// refundCredits applies a compensating credit for a failed operation. When
// the inline attempt fails, the intent is enqueued to the refund outbox; if
// even the enqueue fails, the loss is logged for manual reconciliation.
func (s *Service) refundCredits(ctx context.Context, userID string, amount int, reason string) {
	err := s.repo.AddCredits(ctx, userID, amount, domain.TransactionTypeRefund, reason)
	if err == nil {
		return
	}
	log.Printf("level=error component=generation msg=\"inline refund failed; enqueueing\" user_id=%s amount=%d err=%v", userID, amount, err)

	if enqueueErr := s.repo.EnqueueRefund(ctx, userID, amount, reason); enqueueErr != nil {
		log.Printf("level=error component=generation msg=\"refund enqueue failed; credits lost pending manual reconciliation\" user_id=%s amount=%d err=%v", userID, amount, enqueueErr)
	}
}
