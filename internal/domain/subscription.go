/**
 * @description
 * This file defines the subscription and checkout domain models for the
 * billing-service, including the webhook event payload received from the
 * Creem payment gateway.
 */
package domain

import "time"

// Plan names offered by the storefront.
const (
	PlanBasic = "Basic"
	PlanPro   = "Pro"
	PlanMax   = "Max"
)

// Webhook event types that activate a subscription. All three are treated
// identically.
const (
	EventPaymentSucceeded    = "payment.succeeded"
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionCreated = "subscription.created"
)

// Subscription is the single active subscription row per user, upserted on
// payment confirmation.
type Subscription struct {
	UserID     string    `json:"user_id"`
	Plan       string    `json:"plan"`
	Status     string    `json:"status"`
	ProductID  string    `json:"product_id"`
	OrderID    string    `json:"order_id"`
	CheckoutID string    `json:"checkout_id"`
	StartedAt  time.Time `json:"started_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CheckoutMapping correlates an outbound checkout attempt with the user who
// initiated it, so the asynchronous confirmation can be reattached. Rows are
// short-lived and garbage-collected after a retention window.
type CheckoutMapping struct {
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WebhookEvent is the confirmation payload posted by the payment gateway.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookEventData carries the identifiers needed to resolve the paying user
// and the purchased plan.
type WebhookEventData struct {
	ProductID  string            `json:"product_id"`
	OrderID    string            `json:"order_id"`
	RequestID  string            `json:"request_id"`
	CheckoutID string            `json:"checkout_id"`
	CustomerID string            `json:"customer_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SubscriptionActivatedEvent is published to RabbitMQ after a subscription is
// saved, for downstream consumers such as notification pipelines.
type SubscriptionActivatedEvent struct {
	UserID    string    `json:"user_id"`
	Plan      string    `json:"plan"`
	OrderID   string    `json:"order_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
