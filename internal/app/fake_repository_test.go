package app

import (
	"context"
	"time"

	"github.com/nanobanana/billing-service/internal/domain"
	"github.com/nanobanana/billing-service/internal/store"
)

// ledgerEntry records one AddCredits call for assertions.
type ledgerEntry struct {
	userID      string
	amount      int
	txType      string
	description string
}

// fakeRepository is an in-memory store.Repository for service tests.
type fakeRepository struct {
	balances     map[string]int
	entries      []ledgerEntry
	mappings     map[string]string
	subs         map[string]*domain.Subscription
	refundQueue  []domain.RefundIntent
	nextRefundID int64

	// Failure injection hooks.
	addCreditsHook func(userID string, amount int, txType string) error
	balanceErr     error
	enqueueErr     error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		balances: make(map[string]int),
		mappings: make(map[string]string),
		subs:     make(map[string]*domain.Subscription),
	}
}

func (f *fakeRepository) GetCreditBalance(_ context.Context, userID string) (int, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balances[userID], nil
}

func (f *fakeRepository) AddCredits(_ context.Context, userID string, amount int, transactionType, description string) error {
	if f.addCreditsHook != nil {
		if err := f.addCreditsHook(userID, amount, transactionType); err != nil {
			return err
		}
	}
	if amount < 0 && f.balances[userID]+amount < 0 {
		return store.ErrInsufficientCredits
	}
	f.balances[userID] += amount
	f.entries = append(f.entries, ledgerEntry{
		userID:      userID,
		amount:      amount,
		txType:      transactionType,
		description: description,
	})
	return nil
}

func (f *fakeRepository) ListRecentTransactions(_ context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	var out []domain.CreditTransaction
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := f.entries[i]
		if e.userID != userID {
			continue
		}
		out = append(out, domain.CreditTransaction{
			UserID:      e.userID,
			Amount:      e.amount,
			Type:        e.txType,
			Description: e.description,
		})
	}
	return out, nil
}

func (f *fakeRepository) HasCreditBalance(_ context.Context, userID string) (bool, error) {
	_, ok := f.balances[userID]
	return ok, nil
}

func (f *fakeRepository) CreateCheckoutMapping(_ context.Context, requestID, userID string) error {
	f.mappings[requestID] = userID
	return nil
}

func (f *fakeRepository) FindUserIDByRequestID(_ context.Context, requestID string) (string, error) {
	userID, ok := f.mappings[requestID]
	if !ok {
		return "", store.ErrMappingNotFound
	}
	return userID, nil
}

func (f *fakeRepository) PurgeCheckoutMappingsBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeRepository) UpsertSubscription(_ context.Context, sub *domain.Subscription) error {
	copied := *sub
	f.subs[sub.UserID] = &copied
	return nil
}

func (f *fakeRepository) GetActiveSubscription(_ context.Context, userID string) (*domain.Subscription, error) {
	sub, ok := f.subs[userID]
	if !ok || sub.Status != "active" {
		return nil, store.ErrSubscriptionNotFound
	}
	return sub, nil
}

func (f *fakeRepository) EnqueueRefund(_ context.Context, userID string, amount int, description string) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.nextRefundID++
	f.refundQueue = append(f.refundQueue, domain.RefundIntent{
		ID:          f.nextRefundID,
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Status:      "pending",
	})
	return nil
}

func (f *fakeRepository) ClaimPendingRefunds(_ context.Context, batchSize int) ([]domain.RefundIntent, error) {
	var claimed []domain.RefundIntent
	for i := range f.refundQueue {
		if len(claimed) >= batchSize {
			break
		}
		if f.refundQueue[i].Status != "pending" {
			continue
		}
		f.refundQueue[i].Status = "processing"
		claimed = append(claimed, f.refundQueue[i])
	}
	return claimed, nil
}

func (f *fakeRepository) MarkRefundApplied(_ context.Context, id int64) error {
	for i := range f.refundQueue {
		if f.refundQueue[i].ID == id {
			f.refundQueue[i].Status = "applied"
			return nil
		}
	}
	return store.ErrRefundNotFound
}

func (f *fakeRepository) MarkRefundFailed(_ context.Context, id int64, retryAfterSeconds int, reason string) error {
	for i := range f.refundQueue {
		if f.refundQueue[i].ID == id {
			f.refundQueue[i].Status = "pending"
			f.refundQueue[i].Attempts++
			f.refundQueue[i].NextAttemptAt = time.Now().Add(time.Duration(retryAfterSeconds) * time.Second)
			f.refundQueue[i].LastError = &reason
			return nil
		}
	}
	return store.ErrRefundNotFound
}
