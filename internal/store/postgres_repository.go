/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL for the credit ledger, checkout
 * correlations, subscriptions, and the refund outbox.
 *
 * @notes
 * - The ledger write is the consistency-critical path: the transaction row
 *   and the materialized balance must move together, so both happen inside
 *   one database transaction with the balance row locked FOR UPDATE.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nanobanana/billing-service/internal/domain"
)

var (
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrMappingNotFound      = errors.New("checkout mapping not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrRefundNotFound       = errors.New("refund intent not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetCreditBalance returns the user's current credit balance. A user with no
// balance row has never been granted credits and reads as zero.
func (r *PostgresRepository) GetCreditBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.db.QueryRow(ctx, "SELECT balance FROM user_credits WHERE user_id = $1", userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// HasCreditBalance reports whether a balance row exists for the user. Used to
// make the registration bonus idempotent.
func (r *PostgresRepository) HasCreditBalance(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM user_credits WHERE user_id = $1)", userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// AddCredits is the single mutator for the credit ledger. It appends an
// immutable transaction row and updates the materialized balance in one
// database transaction. Debits lock the balance row FOR UPDATE and are
// rejected with ErrInsufficientCredits rather than over-drafting.
func (r *PostgresRepository) AddCredits(ctx context.Context, userID string, amount int, transactionType, description string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if amount < 0 {
		var balance int
		err = tx.QueryRow(ctx, "SELECT balance FROM user_credits WHERE user_id = $1 FOR UPDATE", userID).Scan(&balance)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrInsufficientCredits
			}
			return err
		}
		if balance+amount < 0 {
			return ErrInsufficientCredits
		}
		_, err = tx.Exec(ctx, "UPDATE user_credits SET balance = balance + $1, updated_at = NOW() WHERE user_id = $2", amount, userID)
		if err != nil {
			return err
		}
	} else {
		// Grants create the balance row lazily on first credit.
		_, err = tx.Exec(ctx, `
			INSERT INTO user_credits (user_id, balance, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE SET
				balance = user_credits.balance + EXCLUDED.balance,
				updated_at = NOW()
		`, userID, amount)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New(), userID, amount, transactionType, description)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListRecentTransactions returns the user's most recent ledger entries,
// newest first.
func (r *PostgresRepository) ListRecentTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, type, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []domain.CreditTransaction{}
	for rows.Next() {
		var t domain.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.CreatedAt); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// CreateCheckoutMapping persists the correlation between a checkout attempt
// and the initiating user.
func (r *PostgresRepository) CreateCheckoutMapping(ctx context.Context, requestID, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO checkout_mappings (request_id, user_id, created_at)
		VALUES ($1, $2, NOW())
	`, requestID, userID)
	return err
}

// FindUserIDByRequestID resolves the user who initiated a checkout attempt.
func (r *PostgresRepository) FindUserIDByRequestID(ctx context.Context, requestID string) (string, error) {
	var userID string
	err := r.db.QueryRow(ctx, "SELECT user_id FROM checkout_mappings WHERE request_id = $1", requestID).Scan(&userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrMappingNotFound
		}
		return "", err
	}
	return userID, nil
}

// PurgeCheckoutMappingsBefore deletes correlation rows older than the cutoff.
func (r *PostgresRepository) PurgeCheckoutMappingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, "DELETE FROM checkout_mappings WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// UpsertSubscription creates or overwrites the user's subscription row,
// keyed by user id so at most one row per user exists.
func (r *PostgresRepository) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscriptions (user_id, plan, status, product_id, order_id, checkout_id, started_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			product_id = EXCLUDED.product_id,
			order_id = EXCLUDED.order_id,
			checkout_id = EXCLUDED.checkout_id,
			started_at = EXCLUDED.started_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`, sub.UserID, sub.Plan, sub.Status, sub.ProductID, sub.OrderID, sub.CheckoutID, sub.StartedAt, sub.ExpiresAt)
	return err
}

// GetActiveSubscription returns the user's subscription when its status is
// 'active'. Expiry is intentionally not compared here; access checks rely on
// status alone, matching the storefront's observed behavior.
func (r *PostgresRepository) GetActiveSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.QueryRow(ctx, `
		SELECT user_id, plan, status, product_id, order_id, checkout_id, started_at, expires_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
	`, userID).Scan(
		&sub.UserID,
		&sub.Plan,
		&sub.Status,
		&sub.ProductID,
		&sub.OrderID,
		&sub.CheckoutID,
		&sub.StartedAt,
		&sub.ExpiresAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// EnqueueRefund persists a compensating credit that failed to apply inline.
func (r *PostgresRepository) EnqueueRefund(ctx context.Context, userID string, amount int, description string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refund_outbox (user_id, amount, description, attempts, status, next_attempt_at, created_at)
		VALUES ($1, $2, $3, 0, 'pending', NOW(), NOW())
	`, userID, amount, description)
	return err
}

// ClaimPendingRefunds marks a batch of due refund intents as processing and
// returns them. Claiming prevents concurrent dispatchers from applying the
// same refund twice; stale 'processing' rows become claimable again after
// their next_attempt_at passes.
func (r *PostgresRepository) ClaimPendingRefunds(ctx context.Context, batchSize int) ([]domain.RefundIntent, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE refund_outbox
		SET status = 'processing', next_attempt_at = NOW() + INTERVAL '2 minutes'
		WHERE id IN (
			SELECT id FROM refund_outbox
			WHERE status IN ('pending', 'processing') AND next_attempt_at <= NOW()
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, user_id, amount, description, attempts, status, next_attempt_at, last_error, created_at, applied_at
	`, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intents := []domain.RefundIntent{}
	for rows.Next() {
		var intent domain.RefundIntent
		if err := rows.Scan(
			&intent.ID,
			&intent.UserID,
			&intent.Amount,
			&intent.Description,
			&intent.Attempts,
			&intent.Status,
			&intent.NextAttemptAt,
			&intent.LastError,
			&intent.CreatedAt,
			&intent.AppliedAt,
		); err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, rows.Err()
}

// MarkRefundApplied records that a queued refund landed.
func (r *PostgresRepository) MarkRefundApplied(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `
		UPDATE refund_outbox
		SET status = 'applied', applied_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRefundNotFound
	}
	return nil
}

// MarkRefundFailed schedules the next retry for a refund that failed again.
func (r *PostgresRepository) MarkRefundFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE refund_outbox
		SET status = 'pending',
			attempts = attempts + 1,
			next_attempt_at = NOW() + ($2 * INTERVAL '1 second'),
			last_error = $3
		WHERE id = $1
	`, id, retryAfterSeconds, reason)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRefundNotFound
	}
	return nil
}
