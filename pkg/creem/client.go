/**
 * @description
 * This package provides a client for the Creem payment gateway API. It
 * encapsulates authenticated HTTP requests to Creem's endpoints, request body
 * construction, and response parsing.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package creem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when the client is constructed without a key.
var ErrMissingAPIKey = errors.New("creem api key is not configured")

// Client is a client for the Creem API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Creem API client. baseURL defaults to the test
// environment when empty.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://test-api.creem.io"
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckoutRequest is the payload for creating a checkout session.
type CheckoutRequest struct {
	ProductID  string `json:"product_id"`
	RequestID  string `json:"request_id,omitempty"`
	SuccessURL string `json:"success_url,omitempty"`
}

// CheckoutResponse is the expected response from Creem's checkout endpoint.
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	CheckoutID  string `json:"id"`
}

// CreateCheckout creates a checkout session and returns the URL the client
// should be redirected to.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if c.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/checkouts", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("creem checkout request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("creem api error: status %d body %s", resp.StatusCode, string(respBody))
	}

	var checkout CheckoutResponse
	if err := json.Unmarshal(respBody, &checkout); err != nil {
		return nil, fmt.Errorf("creem checkout response decode failed: %w", err)
	}
	if checkout.CheckoutURL == "" {
		return nil, errors.New("creem checkout response missing checkout_url")
	}

	return &checkout, nil
}
