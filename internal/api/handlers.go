/**
 * @description
 * This file contains the HTTP handlers for the billing-service's credit and
 * generation endpoints. Handlers parse incoming requests, call the
 * application service, and write JSON responses. Raw internal errors are
 * logged server-side and never forwarded to the client.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain: For service logic and models.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/nanobanana/billing-service/internal/app"
	"github.com/nanobanana/billing-service/internal/config"
	"github.com/nanobanana/billing-service/internal/domain"
)

// Handlers holds the application service that handlers will use.
type Handlers struct {
	service     *app.Service
	rateLimiter *app.RedisRateLimiter
	config      config.Config
}

// NewHandlers creates a new instance of Handlers. rateLimiter may be nil when
// no Redis is configured.
func NewHandlers(service *app.Service, rateLimiter *app.RedisRateLimiter, cfg config.Config) *Handlers {
	return &Handlers{
		service:     service,
		rateLimiter: rateLimiter,
		config:      cfg,
	}
}

// GetCreditsHandler returns the authenticated user's balance and recent
// ledger entries.
func (h *Handlers) GetCreditsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	summary, err := h.service.GetCredits(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to fetch credit balance\" user_id=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch credit balance")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GenerateHandler runs one metered image-generation request.
func (h *Handlers) GenerateHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req domain.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Image == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "Image and prompt are required")
		return
	}

	if h.rateLimiter != nil {
		_, retryAfter, err := h.rateLimiter.ConsumeRateLimit(r.Context(), "generate", userID, h.config.GenerateRateLimitPerMinute, time.Minute)
		if err != nil {
			// Fail open: a limiter outage must not block paying users.
			log.Printf("level=warn component=api msg=\"rate limiter unavailable\" err=%v", err)
		} else if retryAfter > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			writeError(w, http.StatusTooManyRequests, "Too many generation requests. Please slow down.")
			return
		}
	}

	result, err := h.service.GenerateImage(r.Context(), userID, req)
	if err != nil {
		var insufficient *app.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"error":    "Insufficient credits",
				"required": insufficient.Required,
				"current":  insufficient.Current,
			})
			return
		}

		var upstream *app.UpstreamError
		if errors.As(err, &upstream) {
			log.Printf("level=error component=api msg=\"generation failed upstream; refund applied\" user_id=%s err=%v", userID, upstream.Err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to generate image",
				"details": upstream.Err.Error(),
			})
			return
		}

		log.Printf("level=error component=api msg=\"generation failed\" user_id=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate image")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// RegistrationBonusHandler grants the one-time signup credits to the
// authenticated user.
func (h *Handlers) RegistrationBonusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	granted, err := h.service.GrantRegistrationBonus(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api msg=\"registration bonus failed\" user_id=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to grant registration bonus")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"granted": granted,
	})
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
