/**
 * @description
 * Credit-ledger use cases: reading a user's balance with recent activity and
 * granting the one-time registration bonus. All balance mutations go through
 * the repository's atomic AddCredits operation; no client-supplied balance is
 * ever trusted.
 */

package app

import (
	"context"
	"log"

	"github.com/nanobanana/billing-service/internal/domain"
)

// GetCredits returns the user's balance and most recent ledger entries.
// A failure to load the transaction history degrades to an empty list rather
// than failing the whole request.
func (s *Service) GetCredits(ctx context.Context, userID string) (*domain.CreditSummary, error) {
	balance, err := s.repo.GetCreditBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.repo.ListRecentTransactions(ctx, userID, s.config.TransactionHistoryLimit)
	if err != nil {
		log.Printf("level=warn component=credits msg=\"failed to load recent transactions\" user_id=%s err=%v", userID, err)
		transactions = []domain.CreditTransaction{}
	}

	return &domain.CreditSummary{
		Balance:      balance,
		Transactions: transactions,
	}, nil
}

// GrantRegistrationBonus gives a first-time user their free signup credits.
// It is idempotent: a user who already has a balance row gets nothing.
func (s *Service) GrantRegistrationBonus(ctx context.Context, userID string) (bool, error) {
	exists, err := s.repo.HasCreditBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	err = s.repo.AddCredits(ctx, userID, domain.RegistrationBonusCredits, domain.TransactionTypeRegistrationBonus, "Free credits for signing up")
	if err != nil {
		return false, err
	}

	log.Printf("level=info component=credits msg=\"registration bonus granted\" user_id=%s amount=%d", userID, domain.RegistrationBonusCredits)
	return true, nil
}
