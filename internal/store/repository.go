/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the billing-service. The
 * interface decouples the business logic from the PostgreSQL implementation
 * and lets tests substitute in-memory fakes.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/nanobanana/billing-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Credit ledger methods
	GetCreditBalance(ctx context.Context, userID string) (int, error)
	// AddCredits atomically appends a ledger entry and updates the
	// materialized balance. Negative amounts are conditional: the debit is
	// rejected with ErrInsufficientCredits when it would take the balance
	// below zero.
	AddCredits(ctx context.Context, userID string, amount int, transactionType, description string) error
	ListRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error)
	HasCreditBalance(ctx context.Context, userID string) (bool, error)

	// Checkout correlation methods
	CreateCheckoutMapping(ctx context.Context, requestID, userID string) error
	FindUserIDByRequestID(ctx context.Context, requestID string) (string, error)
	PurgeCheckoutMappingsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Subscription methods
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error)

	// Refund outbox methods
	EnqueueRefund(ctx context.Context, userID string, amount int, description string) error
	ClaimPendingRefunds(ctx context.Context, batchSize int) ([]domain.RefundIntent, error)
	MarkRefundApplied(ctx context.Context, id int64) error
	MarkRefundFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
}
