package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nanobanana/billing-service/internal/domain"
)

func TestRefundOutboxFlushAppliesPendingRefunds(t *testing.T) {
	repo := newFakeRepository()
	repo.balances["user-1"] = 0
	if err := repo.EnqueueRefund(context.Background(), "user-1", 6, "Refund for failed generation"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	d := NewRefundOutboxDispatcher(repo, 10, time.Second)
	if err := d.flushOnce(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	if got := repo.balances["user-1"]; got != 6 {
		t.Fatalf("expected balance 6 after refund, got %d", got)
	}
	if len(repo.entries) != 1 || repo.entries[0].txType != domain.TransactionTypeRefund {
		t.Fatalf("expected one refund ledger entry, got %+v", repo.entries)
	}
	if repo.refundQueue[0].Status != "applied" {
		t.Fatalf("expected intent marked applied, got %q", repo.refundQueue[0].Status)
	}
}

func TestRefundOutboxFlushRetriesOnFailure(t *testing.T) {
	repo := newFakeRepository()
	repo.addCreditsHook = func(string, int, string) error {
		return errors.New("connection refused")
	}
	if err := repo.EnqueueRefund(context.Background(), "user-1", 2, "Refund for failed generation"); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	d := NewRefundOutboxDispatcher(repo, 10, time.Second)
	if err := d.flushOnce(context.Background()); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	intent := repo.refundQueue[0]
	if intent.Status != "pending" {
		t.Fatalf("expected intent returned to pending for retry, got %q", intent.Status)
	}
	if intent.Attempts != 1 {
		t.Fatalf("expected one attempt recorded, got %d", intent.Attempts)
	}
	if intent.LastError == nil || *intent.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}
}

func TestRefundRetryDelaySeconds(t *testing.T) {
	tests := []struct {
		attempt int
		want    int
	}{
		{attempt: 0, want: 1},
		{attempt: 1, want: 2},
		{attempt: 3, want: 8},
		{attempt: 8, want: 256},
		{attempt: 9, want: 300},
		{attempt: 50, want: 300},
	}

	for _, tt := range tests {
		if got := refundRetryDelaySeconds(tt.attempt); got != tt.want {
			t.Fatalf("attempt %d: expected delay %d, got %d", tt.attempt, tt.want, got)
		}
	}
}
