/**
 * @description
 * This file defines the domain models for linked wallets and the staged
 * transactions produced by a provider sync. These structs represent the main
 * entities used throughout the service's business logic, database
 * interactions, and API layers.
 *
 * @notes
 * - Monetary amounts use `decimal.Decimal` because imported transactions can
 *   arrive in any currency; integer minor units would force a per-currency
 *   exponent table.
 * - The access credential is stored encrypted and is never serialized in API
 *   responses.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet statuses. A wallet flagged as reauth_required cannot be synced until
// the user completes the provider's re-link flow.
const (
	WalletStatusActive         = "active"
	WalletStatusReauthRequired = "reauth_required"
)

// Wallet represents one linked external financial account. It maps directly
// to the `wallets` table.
type Wallet struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Provider         string    `json:"provider"`
	WalletName       string    `json:"wallet_name"`
	ProviderItemID   string    `json:"provider_item_id"`
	AccessCredential string    `json:"-"` // encrypted at rest, never exposed
	LastSyncCursor   *string   `json:"-"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// StagedTransaction is a provider transaction fetched during sync but not yet
// committed as an expense. It is held only in the review session; the provider
// transaction id is the sole deduplication key and must survive user edits.
type StagedTransaction struct {
	ProviderTransactionID string          `json:"provider_transaction_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Description           string          `json:"description"`
	Category              string          `json:"category"`
	Date                  time.Time       `json:"date"`
}

// SyncResult is the outcome of one incremental sync call for a wallet.
type SyncResult struct {
	WalletID uuid.UUID           `json:"wallet_id"`
	Added    []StagedTransaction `json:"added"`
	Removed  []string            `json:"removed"` // provider transaction ids
}

// ExchangePublicTokenRequest is the DTO for completing a link flow.
type ExchangePublicTokenRequest struct {
	PublicToken string `json:"public_token"`
	WalletName  string `json:"wallet_name"`
}

// LinkTokenResponse is returned when a new link flow is started.
type LinkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
}

// CommitStagedRequest is the DTO for committing reviewed transactions.
type CommitStagedRequest struct {
	Transactions []StagedTransaction `json:"transactions"`
}

// CommitStagedResponse reports how many expenses a commit actually inserted.
// Already-imported transactions are skipped, not errors.
type CommitStagedResponse struct {
	Inserted int `json:"inserted"`
}
