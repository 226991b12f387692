package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyflow/wallet-service/internal/domain"
	"github.com/pennyflow/wallet-service/internal/store"
)

func seedExpense(repo *fakeRepository, userID uuid.UUID, amount, currency string, spentAt time.Time) {
	repo.expenses = append(repo.expenses, domain.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Amount:   decimal.RequireFromString(amount),
		Currency: currency,
		Source:   domain.ExpenseSourceManual,
		SpentAt:  spentAt,
	})
}

func TestGetBudgetStatus_SingleCurrency(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	userID := uuid.New()
	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.SetBudget(context.Background(), userID, domain.SetBudgetRequest{
		Month:    "2026-08",
		Amount:   decimal.RequireFromString("500.00"),
		Currency: "usd",
	}); err != nil {
		t.Fatalf("SetBudget returned error: %v", err)
	}

	seedExpense(repo, userID, "120.00", "USD", august.AddDate(0, 0, 3))
	seedExpense(repo, userID, "30.00", "USD", august.AddDate(0, 0, 10))
	// Outside the month; must not count.
	seedExpense(repo, userID, "999.00", "USD", august.AddDate(0, 1, 0))

	status, err := svc.GetBudgetStatus(context.Background(), userID, august)
	if err != nil {
		t.Fatalf("GetBudgetStatus returned error: %v", err)
	}
	if status.Currency != "USD" {
		t.Fatalf("currency = %q, want USD", status.Currency)
	}
	if !status.Spent.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("spent = %s, want 150.00", status.Spent)
	}
	if !status.Remaining.Equal(decimal.RequireFromString("350.00")) {
		t.Fatalf("remaining = %s, want 350.00", status.Remaining)
	}
	if status.Percent != 30 {
		t.Fatalf("percent = %d, want 30", status.Percent)
	}
}

func TestGetBudgetStatus_RemainingFlooredAtZero(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	userID := uuid.New()
	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.SetBudget(context.Background(), userID, domain.SetBudgetRequest{
		Month:  "2026-08",
		Amount: decimal.RequireFromString("100.00"),
	}); err != nil {
		t.Fatalf("SetBudget returned error: %v", err)
	}
	seedExpense(repo, userID, "250.00", "USD", august.AddDate(0, 0, 5))

	status, err := svc.GetBudgetStatus(context.Background(), userID, august)
	if err != nil {
		t.Fatalf("GetBudgetStatus returned error: %v", err)
	}
	if !status.Remaining.IsZero() {
		t.Fatalf("remaining = %s, want 0", status.Remaining)
	}
	if status.Percent != 250 {
		t.Fatalf("percent = %d, want 250", status.Percent)
	}
}

func TestGetBudgetStatus_CrossCurrencyConversion(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	userID := uuid.New()
	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.SetBudget(context.Background(), userID, domain.SetBudgetRequest{
		Month:    "2026-08",
		Amount:   decimal.RequireFromString("1000.00"),
		Currency: "USD",
	}); err != nil {
		t.Fatalf("SetBudget returned error: %v", err)
	}

	// Direct rate for EUR, inverse-only rate for GBP.
	repo.rates["EUR->USD"] = decimal.RequireFromString("1.10")
	repo.rates["USD->GBP"] = decimal.RequireFromString("0.80")

	seedExpense(repo, userID, "100.00", "EUR", august.AddDate(0, 0, 2)) // 110.00 USD
	seedExpense(repo, userID, "80.00", "GBP", august.AddDate(0, 0, 4))  // 100.00 USD via reciprocal
	seedExpense(repo, userID, "50.00", "USD", august.AddDate(0, 0, 6))

	status, err := svc.GetBudgetStatus(context.Background(), userID, august)
	if err != nil {
		t.Fatalf("GetBudgetStatus returned error: %v", err)
	}
	if !status.Spent.Equal(decimal.RequireFromString("260.00")) {
		t.Fatalf("spent = %s, want 260.00", status.Spent)
	}
}

func TestGetBudgetStatus_MissingRateFallsBackOneToOne(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	userID := uuid.New()
	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	if _, err := svc.SetBudget(context.Background(), userID, domain.SetBudgetRequest{
		Month:    "2026-08",
		Amount:   decimal.RequireFromString("500.00"),
		Currency: "USD",
	}); err != nil {
		t.Fatalf("SetBudget returned error: %v", err)
	}
	seedExpense(repo, userID, "200.00", "JPY", august.AddDate(0, 0, 2))

	status, err := svc.GetBudgetStatus(context.Background(), userID, august)
	if err != nil {
		t.Fatalf("GetBudgetStatus returned error: %v", err)
	}
	if !status.Spent.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("spent = %s, want 1:1 fallback of 200.00", status.Spent)
	}
}

func TestGetBudgetStatus_NoBudgetSet(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.GetBudgetStatus(context.Background(), uuid.New(), august)
	if !errors.Is(err, store.ErrBudgetNotFound) {
		t.Fatalf("expected ErrBudgetNotFound, got %v", err)
	}
}

func TestSetBudget_Validation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	userID := uuid.New()

	tests := []struct {
		name    string
		req     domain.SetBudgetRequest
		wantErr error
	}{
		{
			name:    "bad month",
			req:     domain.SetBudgetRequest{Month: "August 2026", Amount: decimal.RequireFromString("100")},
			wantErr: ErrInvalidMonth,
		},
		{
			name:    "zero amount",
			req:     domain.SetBudgetRequest{Month: "2026-08"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     domain.SetBudgetRequest{Month: "2026-08", Amount: decimal.RequireFromString("-5")},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "bad currency",
			req:     domain.SetBudgetRequest{Month: "2026-08", Amount: decimal.RequireFromString("100"), Currency: "EURO"},
			wantErr: ErrInvalidCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetBudget(context.Background(), userID, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSetBudget_ReplacesExistingMonth(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	userID := uuid.New()

	if _, err := svc.SetBudget(context.Background(), userID, domain.SetBudgetRequest{
		Month:  "2026-08",
		Amount: decimal.RequireFromString("300.00"),
	}); err != nil {
		t.Fatalf("SetBudget returned error: %v", err)
	}
	updated, err := svc.SetBudget(context.Background(), userID, domain.SetBudgetRequest{
		Month:  "2026-08",
		Amount: decimal.RequireFromString("450.00"),
	})
	if err != nil {
		t.Fatalf("second SetBudget returned error: %v", err)
	}
	if !updated.Amount.Equal(decimal.RequireFromString("450.00")) {
		t.Fatalf("amount = %s, want 450.00", updated.Amount)
	}

	august := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	status, err := svc.GetBudgetStatus(context.Background(), userID, august)
	if err != nil {
		t.Fatalf("GetBudgetStatus returned error: %v", err)
	}
	if !status.Budget.Equal(decimal.RequireFromString("450.00")) {
		t.Fatalf("budget = %s, want the replaced amount 450.00", status.Budget)
	}
}
