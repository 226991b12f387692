package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense sources. Imported rows carry the provider transaction id that keeps
// repeated syncs idempotent; manual rows have no dedup key.
const (
	ExpenseSourceManual       = "manual"
	ExpenseSourceWalletImport = "wallet_import"
)

// Expense is a committed ledger row. Maps to the `expenses` table.
type Expense struct {
	ID                    uuid.UUID       `json:"id"`
	UserID                uuid.UUID       `json:"user_id"`
	WalletID              *uuid.UUID      `json:"wallet_id,omitempty"`
	ProviderTransactionID *string         `json:"provider_transaction_id,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Description           string          `json:"description"`
	Category              string          `json:"category"`
	Source                string          `json:"source"`
	SpentAt               time.Time       `json:"spent_at"`
	CreatedAt             time.Time       `json:"created_at"`
}

// CreateExpenseRequest is the DTO for manually logging an expense.
type CreateExpenseRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	SpentAt     time.Time       `json:"spent_at"`
}

// CurrencyTotal is one currency bucket of a month's spending.
type CurrencyTotal struct {
	Currency string
	Total    decimal.Decimal
}
