/**
 * @description
 * This file contains the core business logic for the billing-service. The
 * `Service` struct orchestrates the credit ledger, metered image generation,
 * checkout creation, and webhook reconciliation, coordinating between the
 * database repository, the Creem payment gateway, the upstream model API,
 * and the optional event broker.
 *
 * @dependencies
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/creem, pkg/modelclient, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"

	"github.com/nanobanana/billing-service/internal/config"
	"github.com/nanobanana/billing-service/internal/store"
	"github.com/nanobanana/billing-service/pkg/creem"
	"github.com/nanobanana/billing-service/pkg/modelclient"
)

// ModelClient is the interface for the upstream image-generation API.
type ModelClient interface {
	Generate(ctx context.Context, req modelclient.GenerateRequest) (*modelclient.Result, error)
}

// CheckoutClient is the interface for the payment gateway's checkout API.
type CheckoutClient interface {
	CreateCheckout(ctx context.Context, req creem.CheckoutRequest) (*creem.CheckoutResponse, error)
}

// EventPublisher is the interface for publishing billing events. It is
// optional: a nil publisher disables event publication.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// Service provides the core business logic for billing.
type Service struct {
	repo           store.Repository
	modelClient    ModelClient
	checkoutClient CheckoutClient
	eventProducer  EventPublisher
	config         config.Config
}

// NewService creates a new billing service instance. eventProducer may be nil
// when no broker is configured.
func NewService(repo store.Repository, model ModelClient, checkout CheckoutClient, producer EventPublisher, cfg config.Config) *Service {
	return &Service{
		repo:           repo,
		modelClient:    model,
		checkoutClient: checkout,
		eventProducer:  producer,
		config:         cfg,
	}
}
