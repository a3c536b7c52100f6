/**
 * @description
 * HTTP handlers for the payment surface: checkout creation, subscription
 * lookup, the gateway webhook, and redirect-signature verification.
 *
 * @notes
 * - The webhook is authenticated with an HMAC-SHA256 over the raw request
 *   body when a webhook secret is configured AND the event carries a
 *   signature header; unsigned events are processed as-is. Events we cannot
 *   attribute to a user are still acknowledged with 200 so the gateway does
 *   not retry them forever.
 * - Redirect-signature verification is order-sensitive, so the verify-payment
 *   handler walks the raw query string instead of url.Values (which is a map
 *   and loses ordering), and the verify-signature handler decodes the params
 *   object with a token stream for the same reason.
 *
 * @dependencies
 * - github.com/nanobanana/billing-service/pkg/creem: Signature scheme.
 */

package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nanobanana/billing-service/internal/app"
	"github.com/nanobanana/billing-service/internal/domain"
	"github.com/nanobanana/billing-service/internal/store"
	"github.com/nanobanana/billing-service/pkg/creem"
)

// CreateCheckoutHandler starts a checkout session for the authenticated user.
func (h *Handlers) CreateCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		PlanName string `json:"planName"`
		// BillingCycle is accepted for storefront compatibility; all plans are
		// currently annual.
		BillingCycle string `json:"billingCycle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	checkoutURL, err := h.service.InitiateCheckout(r.Context(), userID, req.PlanName)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPlan) {
			writeError(w, http.StatusBadRequest, "Invalid plan selected")
			return
		}
		log.Printf("level=error component=api msg=\"checkout creation failed\" user_id=%s plan=%s err=%v", userID, req.PlanName, err)
		writeError(w, http.StatusInternalServerError, "Failed to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"checkout_url": checkoutURL,
	})
}

// CheckSubscriptionHandler reports whether the given user has an active
// subscription. The storefront calls this server-to-server, so the user id
// comes from the query rather than a session token.
func (h *Handlers) CheckSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	sub, err := h.service.CheckSubscription(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"hasSubscription": false,
			})
			return
		}
		log.Printf("level=error component=api msg=\"subscription lookup failed\" user_id=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to check subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hasSubscription": true,
		"subscription":    sub,
	})
}

// WebhookHandler ingests payment confirmation events from the gateway.
func (h *Handlers) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	// Verification runs only when both sides participate: a configured secret
	// AND a signed event. The gateway is allowed to send unsigned events, and
	// a missing secret disables verification entirely.
	if signature := r.Header.Get("x-creem-signature"); h.config.CreemWebhookSecret != "" && signature != "" {
		if !verifyWebhookSignature(body, signature, h.config.CreemWebhookSecret) {
			log.Printf("level=warn component=api msg=\"webhook signature mismatch\"")
			writeError(w, http.StatusUnauthorized, "Invalid webhook signature")
			return
		}
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid webhook payload")
		return
	}

	outcome, err := h.service.HandleWebhookEvent(r.Context(), event)
	if err != nil {
		log.Printf("level=error component=api msg=\"webhook processing failed\" event_type=%s err=%v", event.Type, err)
		writeError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	resp := map[string]interface{}{
		"received": true,
	}
	if outcome.Warning != "" {
		resp["warning"] = outcome.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// verifyWebhookSignature compares the hex HMAC-SHA256 of the raw body against
// the gateway-supplied header value in constant time.
func verifyWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyPaymentHandler verifies the signature on a payment-success redirect.
// The gateway signs the query parameters in the order they appear in the URL,
// so the raw query is walked directly.
func (h *Handlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	params, err := parseOrderedQuery(r.URL.RawQuery)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	signature := ""
	echo := make(map[string]string, len(params))
	for _, p := range params {
		if p.Key == "signature" {
			signature = p.Value
			continue
		}
		echo[p.Key] = p.Value
	}
	if signature == "" {
		writeError(w, http.StatusBadRequest, "signature is required")
		return
	}

	valid := creem.Verify(params, signature, h.config.CreemAPIKey)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  valid,
		"params": echo,
	})
}

// VerifySignatureHandler verifies a caller-supplied parameter set against its
// signature. The params object is decoded as a token stream to preserve the
// key order the signature was computed over.
func (h *Handlers) VerifySignatureHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Params) == 0 {
		writeError(w, http.StatusBadRequest, "params object is required")
		return
	}

	params, err := decodeOrderedParams(req.Params)
	if err != nil {
		writeError(w, http.StatusBadRequest, "params must be a flat JSON object")
		return
	}

	signature := ""
	for _, p := range params {
		if p.Key == "signature" {
			signature = p.Value
			break
		}
	}
	if signature == "" {
		writeError(w, http.StatusBadRequest, "signature is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid": creem.Verify(params, signature, h.config.CreemAPIKey),
	})
}

// AddSubscriptionHandler grants the authenticated user a subscription outside
// the payment flow.
func (h *Handlers) AddSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		PlanName string `json:"planName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.service.AddManualSubscription(r.Context(), userID, req.PlanName)
	if err != nil {
		if errors.Is(err, app.ErrInvalidPlan) {
			writeError(w, http.StatusBadRequest, "Invalid plan selected")
			return
		}
		log.Printf("level=error component=api msg=\"manual subscription failed\" user_id=%s err=%v", userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to add subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"subscription": sub,
	})
}

// parseOrderedQuery splits a raw query string into ordered key/value pairs.
// url.Values cannot be used here because it is a map and discards the order
// the signature depends on.
func parseOrderedQuery(rawQuery string) ([]creem.Param, error) {
	if rawQuery == "" {
		return nil, nil
	}

	var params []creem.Param
	for _, segment := range strings.Split(rawQuery, "&") {
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return nil, err
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		params = append(params, creem.Param{Key: decodedKey, Value: decodedValue})
	}
	return params, nil
}

// decodeOrderedParams decodes a flat JSON object into ordered params,
// stringifying scalar values the way the gateway does. Null-valued keys are
// dropped here: they are excluded from the canonical string, while empty
// strings stay in it as "key=".
func decodeOrderedParams(raw json.RawMessage) ([]creem.Param, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object, got %v", tok)
	}

	var params []creem.Param
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key: %v", keyTok)
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		if value == nil {
			continue
		}
		params = append(params, creem.Param{Key: key, Value: stringifyParamValue(value)})
	}
	return params, nil
}

// stringifyParamValue renders a decoded JSON scalar the way the gateway's
// template stringification does.
func stringifyParamValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
