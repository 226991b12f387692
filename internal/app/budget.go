/**
 * @description
 * Budget status calculation: sums a month's expenses, converts each currency
 * bucket into the budget's currency, and reports spent/remaining/percent.
 *
 * Conversion looks up a stored bilateral rate, then the inverse rate's
 * reciprocal, and finally falls back to 1:1. The 1:1 fallback is a known
 * accuracy gap, logged at warn, not a failure.
 */

package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyflow/wallet-service/internal/domain"
	"github.com/pennyflow/wallet-service/internal/store"
)

// conversionScale bounds the precision of cross-currency division.
const conversionScale = 8

// GetBudgetStatus reports how the user's spending for a month compares to
// their budget. Remaining is floored at zero; percent is rounded to the
// nearest integer.
func (s *Service) GetBudgetStatus(ctx context.Context, userID uuid.UUID, month time.Time) (*domain.BudgetStatus, error) {
	budget, err := s.repo.FindBudgetForMonth(ctx, userID, month)
	if err != nil {
		return nil, err
	}

	start, end := monthBounds(month)
	totals, err := s.repo.SumExpensesByCurrency(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	spent := decimal.Zero
	for _, total := range totals {
		converted, err := s.convert(ctx, total.Total, total.Currency, budget.Currency)
		if err != nil {
			return nil, err
		}
		spent = spent.Add(converted)
	}

	remaining := budget.Amount.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	percent := 0
	if budget.Amount.IsPositive() {
		percent = int(spent.Div(budget.Amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}

	return &domain.BudgetStatus{
		Budget:    budget.Amount,
		Spent:     spent,
		Remaining: remaining,
		Percent:   percent,
		Currency:  budget.Currency,
	}, nil
}

// convert translates an amount into the target currency using the stored
// rate table: direct rate first, then the reciprocal of the inverse rate,
// then 1:1.
func (s *Service) convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to || amount.IsZero() {
		return amount, nil
	}

	rate, err := s.repo.FindExchangeRate(ctx, from, to)
	if err == nil {
		return amount.Mul(rate), nil
	}
	if !errors.Is(err, store.ErrRateNotFound) {
		return decimal.Zero, err
	}

	inverse, err := s.repo.FindExchangeRate(ctx, to, from)
	if err == nil {
		if inverse.IsZero() {
			log.Printf("level=warn component=app op=convert msg=\"zero inverse rate; falling back to 1:1\" from=%s to=%s", from, to)
			return amount, nil
		}
		return amount.DivRound(inverse, conversionScale), nil
	}
	if !errors.Is(err, store.ErrRateNotFound) {
		return decimal.Zero, err
	}

	log.Printf("level=warn component=app op=convert msg=\"no rate found; falling back to 1:1\" from=%s to=%s", from, to)
	return amount, nil
}

// SetBudget creates or replaces the budget for a month.
func (s *Service) SetBudget(ctx context.Context, userID uuid.UUID, req domain.SetBudgetRequest) (*domain.Budget, error) {
	month, err := ParseMonth(req.Month)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	return s.repo.UpsertBudget(ctx, userID, month, req.Amount, currency)
}
