/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the wallet-service. Defining an
 * interface decouples the business logic from the PostgreSQL implementation
 * and lets tests substitute an in-memory fake.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - github.com/shopspring/decimal: For monetary values.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyflow/wallet-service/internal/domain"
)

// UpsertWalletParams carries the fields written when a public token exchange
// completes. The upsert is keyed on (user_id, provider, provider_item_id); a
// re-link of the same account overwrites the stored credential in place.
type UpsertWalletParams struct {
	UserID           uuid.UUID
	Provider         string
	WalletName       string
	ProviderItemID   string
	AccessCredential string // already encrypted by the caller
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	// Resolve the internal UUID from the auth token subject (e.g., "user_abc123").
	FindUserIDByAuthSubject(ctx context.Context, authSubject string) (string, error)

	// Wallet methods
	ListWalletsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	FindWalletByID(ctx context.Context, walletID uuid.UUID, userID uuid.UUID) (*domain.Wallet, error)
	// UpsertWalletByProviderItem atomically creates the wallet or, when the
	// (user, provider, item) key already exists, replaces its credential and
	// display name. Exactly one row exists per key afterwards.
	UpsertWalletByProviderItem(ctx context.Context, params UpsertWalletParams) (*domain.Wallet, error)
	UpdateWalletCursor(ctx context.Context, walletID uuid.UUID, cursor string) error
	UpdateWalletStatus(ctx context.Context, walletID uuid.UUID, status string) error
	DeleteWallet(ctx context.Context, walletID uuid.UUID, userID uuid.UUID) error

	// Expense methods
	// InsertExpensesIfAbsent inserts each row unless an expense with the same
	// (user, provider transaction id) already exists. The conditional insert is
	// a single store-level operation per row, so concurrent commits for the
	// same id cannot both insert. Returns the number of rows inserted.
	InsertExpensesIfAbsent(ctx context.Context, rows []domain.Expense) (int, error)
	FindExpenseProviderTransactionIDs(ctx context.Context, userID uuid.UUID, ids []string) ([]string, error)
	CreateExpense(ctx context.Context, expense *domain.Expense) error
	ListExpensesByMonth(ctx context.Context, userID uuid.UUID, monthStart, monthEnd time.Time) ([]domain.Expense, error)
	SumExpensesByCurrency(ctx context.Context, userID uuid.UUID, monthStart, monthEnd time.Time) ([]domain.CurrencyTotal, error)

	// Budget methods
	FindBudgetForMonth(ctx context.Context, userID uuid.UUID, month time.Time) (*domain.Budget, error)
	UpsertBudget(ctx context.Context, userID uuid.UUID, month time.Time, amount decimal.Decimal, currency string) (*domain.Budget, error)

	// Exchange rate methods
	// FindExchangeRate returns the stored rate from one currency to another,
	// or ErrRateNotFound when no direct row exists. Callers handle the inverse
	// and 1:1 fallbacks.
	FindExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	UpsertExchangeRate(ctx context.Context, from, to string, rate decimal.Decimal) error
}
