/**
 * @description
 * This file sets up the HTTP router for the billing-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies middleware for logging, panic recovery, CORS, and authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for the browser-facing routes.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// BillingRoutes creates and returns the router for the billing service.
func BillingRoutes(h *Handlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Billing service is healthy"))
	})

	// Gateway- and storefront-facing endpoints. The webhook authenticates via
	// HMAC and the rest are server-to-server or signature-verified.
	r.Post("/payment/webhook", h.WebhookHandler)
	r.Get("/payment/check-subscription", h.CheckSubscriptionHandler)
	r.Get("/payment/verify-payment", h.VerifyPaymentHandler)
	r.Post("/payment/verify-signature", h.VerifySignatureHandler)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Get("/credits", h.GetCreditsHandler)
		r.Post("/generate", h.GenerateHandler)
		r.Post("/auth/registration-bonus", h.RegistrationBonusHandler)

		r.Post("/payment/create-checkout", h.CreateCheckoutHandler)
		r.Post("/payment/add-subscription", h.AddSubscriptionHandler)
	})

	return r
}
