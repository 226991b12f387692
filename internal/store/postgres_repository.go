/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed for wallets, expenses, budgets
 * and exchange rates.
 *
 * @dependencies
 * - context, time, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/shopspring/decimal: NUMERIC columns are scanned through their
 *   text representation.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pennyflow/wallet-service/internal/domain"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrWalletNotFound = errors.New("wallet not found")
	ErrBudgetNotFound = errors.New("budget not found")
	ErrRateNotFound   = errors.New("exchange rate not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserIDByAuthSubject resolves the internal UUID from an auth token subject.
// The users table carries an auth_subject column managed during onboarding.
func (r *PostgresRepository) FindUserIDByAuthSubject(ctx context.Context, authSubject string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE auth_subject = $1", authSubject).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return id, nil
}

const walletColumns = `id, user_id, provider, wallet_name, provider_item_id, access_credential, last_sync_cursor, status, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.ID, &w.UserID, &w.Provider, &w.WalletName, &w.ProviderItemID,
		&w.AccessCredential, &w.LastSyncCursor, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWalletsByUserID returns all wallets owned by a user, newest first.
func (r *PostgresRepository) ListWalletsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *w)
	}
	return wallets, rows.Err()
}

// FindWalletByID retrieves a wallet scoped to its owner. A wallet belonging to
// another user is reported as not found.
func (r *PostgresRepository) FindWalletByID(ctx context.Context, walletID uuid.UUID, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 AND user_id = $2`
	w, err := scanWallet(r.db.QueryRow(ctx, query, walletID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// UpsertWalletByProviderItem writes the wallet row for a completed public
// token exchange. The unique index on (user_id, provider, provider_item_id)
// makes a re-link of the same account an in-place credential update instead of
// a duplicate row; credential and item id land in one atomic statement.
func (r *PostgresRepository) UpsertWalletByProviderItem(ctx context.Context, params UpsertWalletParams) (*domain.Wallet, error) {
	query := `
		INSERT INTO wallets (id, user_id, provider, wallet_name, provider_item_id, access_credential, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (user_id, provider, provider_item_id)
		DO UPDATE SET
			access_credential = EXCLUDED.access_credential,
			wallet_name = EXCLUDED.wallet_name,
			status = $7,
			updated_at = now()
		RETURNING ` + walletColumns
	w, err := scanWallet(r.db.QueryRow(ctx, query,
		uuid.New(), params.UserID, params.Provider, params.WalletName,
		params.ProviderItemID, params.AccessCredential, domain.WalletStatusActive,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert wallet: %w", err)
	}
	return w, nil
}

// UpdateWalletCursor persists the provider sync cursor. Called only after a
// fully successful fetch; on failure the old cursor stays in place so the next
// sync re-fetches the same window.
func (r *PostgresRepository) UpdateWalletCursor(ctx context.Context, walletID uuid.UUID, cursor string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE wallets SET last_sync_cursor = $1, updated_at = now() WHERE id = $2`,
		cursor, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// UpdateWalletStatus flags a wallet, e.g. as reauth_required after the
// provider reports a revoked credential.
func (r *PostgresRepository) UpdateWalletStatus(ctx context.Context, walletID uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE wallets SET status = $1, updated_at = now() WHERE id = $2`,
		status, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// DeleteWallet removes a wallet row. Imported expenses keep their wallet_id
// reference via ON DELETE SET NULL.
func (r *PostgresRepository) DeleteWallet(ctx context.Context, walletID uuid.UUID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM wallets WHERE id = $1 AND user_id = $2`, walletID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// InsertExpensesIfAbsent inserts each expense unless the user already has a
// row with the same provider transaction id. The partial unique index on
// (user_id, provider_transaction_id) plus ON CONFLICT DO NOTHING makes each
// insert conditional at the store level, so repeated or concurrent commits of
// the same staged set can never double-import.
func (r *PostgresRepository) InsertExpensesIfAbsent(ctx context.Context, rows []domain.Expense) (int, error) {
	query := `
		INSERT INTO expenses (id, user_id, wallet_id, provider_transaction_id, amount, currency, description, category, source, spent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id, provider_transaction_id) WHERE provider_transaction_id IS NOT NULL
		DO NOTHING`
	inserted := 0
	for _, row := range rows {
		tag, err := r.db.Exec(ctx, query,
			uuid.New(), row.UserID, row.WalletID, row.ProviderTransactionID,
			row.Amount.String(), row.Currency, row.Description, row.Category,
			row.Source, row.SpentAt)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert expense %v: %w", row.ProviderTransactionID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// FindExpenseProviderTransactionIDs returns the subset of ids the user has
// already imported.
func (r *PostgresRepository) FindExpenseProviderTransactionIDs(ctx context.Context, userID uuid.UUID, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT provider_transaction_id FROM expenses WHERE user_id = $1 AND provider_transaction_id = ANY($2)`
	rows, err := r.db.Query(ctx, query, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// CreateExpense inserts a manually entered expense (no dedup key).
func (r *PostgresRepository) CreateExpense(ctx context.Context, expense *domain.Expense) error {
	query := `
		INSERT INTO expenses (id, user_id, wallet_id, provider_transaction_id, amount, currency, description, category, source, spent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		expense.ID, expense.UserID, expense.WalletID, expense.ProviderTransactionID,
		expense.Amount.String(), expense.Currency, expense.Description,
		expense.Category, expense.Source, expense.SpentAt,
	).Scan(&expense.CreatedAt)
}

// ListExpensesByMonth returns a user's expenses within [monthStart, monthEnd).
func (r *PostgresRepository) ListExpensesByMonth(ctx context.Context, userID uuid.UUID, monthStart, monthEnd time.Time) ([]domain.Expense, error) {
	query := `
		SELECT id, user_id, wallet_id, provider_transaction_id, amount::text, currency, description, category, source, spent_at, created_at
		FROM expenses
		WHERE user_id = $1 AND spent_at >= $2 AND spent_at < $3
		ORDER BY spent_at DESC, created_at DESC`
	rows, err := r.db.Query(ctx, query, userID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []domain.Expense
	for rows.Next() {
		var e domain.Expense
		var amountText string
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.WalletID, &e.ProviderTransactionID, &amountText,
			&e.Currency, &e.Description, &e.Category, &e.Source, &e.SpentAt, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountText)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q on expense %s: %w", amountText, e.ID, err)
		}
		e.Amount = amount
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// SumExpensesByCurrency groups a month's spending by currency. Refund-style
// negative amounts net out inside each bucket.
func (r *PostgresRepository) SumExpensesByCurrency(ctx context.Context, userID uuid.UUID, monthStart, monthEnd time.Time) ([]domain.CurrencyTotal, error) {
	query := `
		SELECT currency, COALESCE(SUM(amount), 0)::text
		FROM expenses
		WHERE user_id = $1 AND spent_at >= $2 AND spent_at < $3
		GROUP BY currency`
	rows, err := r.db.Query(ctx, query, userID, monthStart, monthEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []domain.CurrencyTotal
	for rows.Next() {
		var t domain.CurrencyTotal
		var totalText string
		if err := rows.Scan(&t.Currency, &totalText); err != nil {
			return nil, err
		}
		total, err := decimal.NewFromString(totalText)
		if err != nil {
			return nil, fmt.Errorf("invalid sum %q for currency %s: %w", totalText, t.Currency, err)
		}
		t.Total = total
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// FindBudgetForMonth returns the budget whose month is the latest one at or
// before the requested month, so a budget set in January keeps applying until
// the user changes it.
func (r *PostgresRepository) FindBudgetForMonth(ctx context.Context, userID uuid.UUID, month time.Time) (*domain.Budget, error) {
	query := `
		SELECT id, user_id, month, amount::text, currency, created_at, updated_at
		FROM budgets
		WHERE user_id = $1 AND month <= $2
		ORDER BY month DESC
		LIMIT 1`
	var b domain.Budget
	var amountText string
	err := r.db.QueryRow(ctx, query, userID, month).Scan(
		&b.ID, &b.UserID, &b.Month, &amountText, &b.Currency, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("invalid budget amount %q: %w", amountText, err)
	}
	b.Amount = amount
	return &b, nil
}

// UpsertBudget creates or replaces the budget for one month.
func (r *PostgresRepository) UpsertBudget(ctx context.Context, userID uuid.UUID, month time.Time, amount decimal.Decimal, currency string) (*domain.Budget, error) {
	query := `
		INSERT INTO budgets (id, user_id, month, amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (user_id, month)
		DO UPDATE SET amount = EXCLUDED.amount, currency = EXCLUDED.currency, updated_at = now()
		RETURNING id, user_id, month, amount::text, currency, created_at, updated_at`
	var b domain.Budget
	var amountText string
	err := r.db.QueryRow(ctx, query, uuid.New(), userID, month, amount.String(), currency).Scan(
		&b.ID, &b.UserID, &b.Month, &amountText, &b.Currency, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert budget: %w", err)
	}
	parsed, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("invalid budget amount %q: %w", amountText, err)
	}
	b.Amount = parsed
	return &b, nil
}

// FindExchangeRate returns the stored rate for converting from one currency
// to another. Only the direct direction is looked up here.
func (r *PostgresRepository) FindExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	var rateText string
	err := r.db.QueryRow(ctx,
		`SELECT rate::text FROM exchange_rates WHERE from_currency = $1 AND to_currency = $2`,
		from, to).Scan(&rateText)
	if err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Zero, ErrRateNotFound
		}
		return decimal.Zero, err
	}
	rate, err := decimal.NewFromString(rateText)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid rate %q for %s->%s: %w", rateText, from, to, err)
	}
	return rate, nil
}

// UpsertExchangeRate writes one bilateral rate. Used for operational backfill;
// the scheduled rate fetcher lives outside this service.
func (r *PostgresRepository) UpsertExchangeRate(ctx context.Context, from, to string, rate decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO exchange_rates (from_currency, to_currency, rate, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (from_currency, to_currency)
		DO UPDATE SET rate = EXCLUDED.rate, updated_at = now()`,
		from, to, rate.String())
	return err
}
