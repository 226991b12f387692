package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget is a user's monthly spending limit. Month is normalized to the first
// day of the month in UTC. Maps to the `budgets` table.
type Budget struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Month     time.Time       `json:"month"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BudgetStatus summarizes a month's spending against the budget, in the
// budget's currency. Remaining is floored at zero.
type BudgetStatus struct {
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Percent   int             `json:"percent"`
	Currency  string          `json:"currency"`
}

// SetBudgetRequest is the DTO for creating or replacing a month's budget.
type SetBudgetRequest struct {
	Month    string          `json:"month"` // YYYY-MM
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}
