/**
 * @description
 * This package provides a client for the account-aggregation provider's API
 * (a Plaid-style service). It encapsulates authenticated HTTP requests for
 * the link flow (link token creation, public token exchange), incremental
 * transaction sync, and item removal.
 *
 * Provider responses are decoded into explicitly typed payloads; error bodies
 * decode into APIError, whose code distinguishes transient outages from
 * permanently revoked credentials.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Transaction amounts on the wire.
 */
package aggregatorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Error codes returned by the provider. The first group is transient and safe
// to retry; the second is permanent until the user acts.
const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_SERVER_ERROR"

	CodeItemLoginRequired  = "ITEM_LOGIN_REQUIRED"
	CodeInvalidPublicToken = "INVALID_PUBLIC_TOKEN"
	CodeItemNotFound       = "ITEM_NOT_FOUND"
)

// Client is a client for the aggregation provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new aggregation provider client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents a structured error from the provider API.
type APIError struct {
	ErrorCode    string `json:"error_code"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	StatusCode   int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("aggregator api error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("aggregator api error: %s - %s", e.ErrorCode, e.ErrorMessage)
}

// AuthRevoked reports whether the stored credential is no longer valid and
// the user must re-link the account.
func (e *APIError) AuthRevoked() bool {
	return e.ErrorCode == CodeItemLoginRequired
}

// InvalidToken reports whether a public token was rejected (expired, already
// used — public tokens are single-use).
func (e *APIError) InvalidToken() bool {
	return e.ErrorCode == CodeInvalidPublicToken
}

// LinkTokenResponse is the payload returned by /link/token/create.
type LinkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
}

// ExchangeResponse is the payload returned by /item/public_token/exchange.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

// Transaction is one provider transaction in a sync response.
type Transaction struct {
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	CurrencyCode  string          `json:"iso_currency_code"`
	Date          string          `json:"date"` // YYYY-MM-DD
	Name          string          `json:"name"`
	MerchantName  string          `json:"merchant_name"`
	MCC           *int            `json:"merchant_category_code,omitempty"`
}

// RemovedTransaction identifies a transaction the provider has retracted.
type RemovedTransaction struct {
	TransactionID string `json:"transaction_id"`
}

// SyncResponse is one page of the incremental-changes endpoint.
type SyncResponse struct {
	Added      []Transaction        `json:"added"`
	Modified   []Transaction        `json:"modified"`
	Removed    []RemovedTransaction `json:"removed"`
	NextCursor string               `json:"next_cursor"`
	HasMore    bool                 `json:"has_more"`
}

// SyncPage is the accumulated result of following all has_more pages of one
// sync call. NextCursor is the cursor after the final page.
type SyncPage struct {
	Added      []Transaction
	Modified   []Transaction
	Removed    []RemovedTransaction
	NextCursor string
}

// CreateLinkToken asks the provider for a new short-lived link token scoped
// to the given user.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (*LinkTokenResponse, error) {
	body := map[string]string{"user_id": userID}
	var resp LinkTokenResponse
	if err := c.post(ctx, "/link/token/create", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangePublicToken trades a completed-flow public token for a long-lived
// access token and the provider's item identifier. Public tokens are
// single-use; a reused or expired token fails with INVALID_PUBLIC_TOKEN.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	body := map[string]string{"public_token": publicToken}
	var resp ExchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncTransactions fetches all transaction changes since the given cursor,
// following pagination until the provider reports no more pages. A nil cursor
// requests the full history window (first sync).
func (c *Client) SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*SyncPage, error) {
	page := &SyncPage{}
	current := ""
	if cursor != nil {
		current = *cursor
	}

	for {
		body := map[string]string{"access_token": accessToken}
		if current != "" {
			body["cursor"] = current
		}
		var resp SyncResponse
		if err := c.post(ctx, "/transactions/sync", body, &resp); err != nil {
			return nil, err
		}
		page.Added = append(page.Added, resp.Added...)
		page.Modified = append(page.Modified, resp.Modified...)
		page.Removed = append(page.Removed, resp.Removed...)
		page.NextCursor = resp.NextCursor
		if !resp.HasMore {
			return page, nil
		}
		current = resp.NextCursor
	}
}

// RemoveItem revokes the access token with the provider. Called before a
// wallet row is deleted on user disconnect.
func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	body := map[string]string{"access_token": accessToken}
	var resp struct {
		Removed bool `json:"removed"`
	}
	return c.post(ctx, "/item/remove", body, &resp)
}

// post executes one JSON request against the provider and decodes either the
// success payload or a typed APIError.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-aggregator-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request for %s: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response for %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr APIError
		if err := json.Unmarshal(bodyBytes, &apiErr); err != nil || apiErr.ErrorCode == "" {
			log.Printf("level=warn component=aggregator_client path=%s status=%d msg=\"non-2xx response (unparsable error body)\"", path, resp.StatusCode)
			return &APIError{StatusCode: resp.StatusCode, ErrorMessage: "unparsable error body"}
		}
		apiErr.StatusCode = resp.StatusCode
		log.Printf("level=warn component=aggregator_client path=%s status=%d code=%s detail=%q", path, resp.StatusCode, apiErr.ErrorCode, apiErr.ErrorMessage)
		return &apiErr
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response for %s: %w", path, err)
	}
	return nil
}
