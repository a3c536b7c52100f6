/**
 * @description
 * This file defines the credit-ledger domain models for the billing-service.
 * The ledger is an append-only transaction log plus a materialized per-user
 * balance; every balance change flows through both in one atomic operation.
 *
 * @notes
 * - Credits are whole units, so amounts are plain integers. A positive amount
 *   is a grant or refund, a negative amount is a debit.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types recorded in the credit ledger.
const (
	TransactionTypeRegistrationBonus = "registration_bonus"
	TransactionTypeImageGeneration   = "image_generation"
	TransactionTypeRefund            = "refund"
	TransactionTypeManualAdjustment  = "manual_adjustment"
)

// RegistrationBonusCredits is granted once on a user's first sign-in.
const RegistrationBonusCredits = 4

// CreditBalance is the materialized balance row for one user. It is created
// lazily on the first credit grant and never deleted.
type CreditBalance struct {
	UserID    string    `json:"user_id"`
	Balance   int       `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreditTransaction is one immutable ledger entry. Entries are append-only;
// the canonical read order for recent-activity views is created_at descending.
type CreditTransaction struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      int       `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreditSummary is the DTO returned by the credits endpoint.
type CreditSummary struct {
	Balance      int                 `json:"balance"`
	Transactions []CreditTransaction `json:"transactions"`
}

// RefundIntent is one row of the refund outbox: a compensating credit that
// could not be applied inline and must be retried until it lands.
type RefundIntent struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"user_id"`
	Amount        int        `json:"amount"`
	Description   string     `json:"description"`
	Attempts      int        `json:"attempts"`
	Status        string     `json:"status"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
}
