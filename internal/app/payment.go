/**
 * @description
 * Checkout creation and webhook reconciliation. InitiateCheckout correlates
 * an outbound checkout attempt with the initiating user before redirecting
 * them to the payment gateway; HandleWebhookEvent reattaches the gateway's
 * asynchronous confirmation to that user and activates their subscription.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/nanobanana/billing-service/internal/domain"
	"github.com/nanobanana/billing-service/internal/store"
	"github.com/nanobanana/billing-service/pkg/creem"
)

// ErrInvalidPlan is returned when the requested plan is not offered.
var ErrInvalidPlan = errors.New("invalid plan selected")

// WebhookOutcome describes what the reconciler did with a confirmation event.
type WebhookOutcome struct {
	Handled  bool
	Resolved bool
	UserID   string
	Plan     string
	Warning  string
}

// newCheckoutRequestID builds the correlation id sent to the gateway:
// millisecond timestamp plus a short base36 random suffix. The format is
// preserved from the storefront for gateway-payload compatibility; row-level
// ids elsewhere use UUIDs.
func newCheckoutRequestID() string {
	suffix := strconv.FormatInt(rand.Int63(), 36)
	if len(suffix) > 7 {
		suffix = suffix[:7]
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

// InitiateCheckout validates the plan, records the checkout correlation, and
// asks the gateway for a checkout URL. The correlation write is best-effort:
// its failure degrades to "the webhook won't resolve this user", never to a
// blocked purchase.
func (s *Service) InitiateCheckout(ctx context.Context, userID, planName string) (string, error) {
	productID, ok := s.config.PlanProducts()[planName]
	if !ok {
		return "", ErrInvalidPlan
	}

	requestID := newCheckoutRequestID()

	if err := s.repo.CreateCheckoutMapping(ctx, requestID, userID); err != nil {
		log.Printf("level=warn component=payment msg=\"could not save checkout mapping\" request_id=%s err=%v", requestID, err)
	}

	checkout, err := s.checkoutClient.CreateCheckout(ctx, creem.CheckoutRequest{
		ProductID:  productID,
		RequestID:  requestID,
		SuccessURL: s.config.AppBaseURL + "/payment/success",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return checkout.CheckoutURL, nil
}

// HandleWebhookEvent processes a confirmation event from the payment gateway.
// Unresolvable events are acknowledged with a warning rather than failed, so
// the gateway is never driven into a retry storm over an event we can never
// resolve.
func (s *Service) HandleWebhookEvent(ctx context.Context, event domain.WebhookEvent) (*WebhookOutcome, error) {
	switch event.Type {
	case domain.EventPaymentSucceeded, domain.EventCheckoutCompleted, domain.EventSubscriptionCreated:
	default:
		return &WebhookOutcome{Handled: false}, nil
	}

	// Resolution order: embedded metadata first, then the correlation record.
	userID := event.Data.Metadata["user_id"]
	if userID == "" && event.Data.RequestID != "" {
		resolved, err := s.repo.FindUserIDByRequestID(ctx, event.Data.RequestID)
		if err != nil {
			if !errors.Is(err, store.ErrMappingNotFound) {
				log.Printf("level=error component=payment msg=\"checkout mapping lookup failed\" request_id=%s err=%v", event.Data.RequestID, err)
			}
		} else {
			userID = resolved
		}
	}

	if userID == "" {
		log.Printf("level=warn component=payment msg=\"no user resolved for payment event\" order_id=%s request_id=%s customer_id=%s",
			event.Data.OrderID, event.Data.RequestID, event.Data.CustomerID)
		return &WebhookOutcome{Handled: true, Resolved: false, Warning: "No user_id found"}, nil
	}

	plan := s.config.PlanForProduct(event.Data.ProductID)
	now := time.Now()

	sub := &domain.Subscription{
		UserID:     userID,
		Plan:       plan,
		Status:     "active",
		ProductID:  event.Data.ProductID,
		OrderID:    event.Data.OrderID,
		CheckoutID: event.Data.CheckoutID,
		StartedAt:  now,
		ExpiresAt:  now.AddDate(1, 0, 0),
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}

	log.Printf("level=info component=payment msg=\"subscription activated\" user_id=%s plan=%s order_id=%s", userID, plan, event.Data.OrderID)

	s.publishSubscriptionActivated(ctx, sub)

	return &WebhookOutcome{Handled: true, Resolved: true, UserID: userID, Plan: plan}, nil
}

// publishSubscriptionActivated emits a billing event for downstream
// consumers. Publishing is best-effort and never fails the webhook.
func (s *Service) publishSubscriptionActivated(ctx context.Context, sub *domain.Subscription) {
	if s.eventProducer == nil {
		return
	}
	event := domain.SubscriptionActivatedEvent{
		UserID:    sub.UserID,
		Plan:      sub.Plan,
		OrderID:   sub.OrderID,
		ExpiresAt: sub.ExpiresAt,
	}
	if err := s.eventProducer.Publish(ctx, "billing.subscription.activated", event); err != nil {
		log.Printf("level=warn component=payment msg=\"failed to publish subscription event\" user_id=%s err=%v", sub.UserID, err)
	}
}

// CheckSubscription returns the user's active subscription, or
// store.ErrSubscriptionNotFound when there is none. Expiry is not compared
// at read time; only the status gates access.
func (s *Service) CheckSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return s.repo.GetActiveSubscription(ctx, userID)
}

// AddManualSubscription upserts an active subscription outside the payment
// flow, used for support-driven grants.
func (s *Service) AddManualSubscription(ctx context.Context, userID, planName string) (*domain.Subscription, error) {
	if planName == "" {
		planName = domain.PlanBasic
	}
	if _, ok := s.config.PlanProducts()[planName]; !ok {
		return nil, ErrInvalidPlan
	}

	now := time.Now()
	marker := fmt.Sprintf("manual_%d", now.UnixMilli())

	sub := &domain.Subscription{
		UserID:     userID,
		Plan:       planName,
		Status:     "active",
		ProductID:  "manual_add",
		OrderID:    marker,
		CheckoutID: marker,
		StartedAt:  now,
		ExpiresAt:  now.AddDate(1, 0, 0),
	}

	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to add subscription: %w", err)
	}
	return sub, nil
}
