/**
 * @description
 * HTTP handlers for the budget and expense ledger endpoints. The month for
 * budget status and expense listing comes from a `month=YYYY-MM` query
 * parameter, defaulting to the current calendar month.
 */

package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/pennyflow/wallet-service/internal/app"
	"github.com/pennyflow/wallet-service/internal/domain"
)

// monthQueryParam resolves the optional ?month=YYYY-MM parameter.
func (h *WalletHandlers) monthQueryParam(w http.ResponseWriter, r *http.Request, endpoint string) (time.Time, bool) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), true
	}
	month, err := app.ParseMonth(raw)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_month value=%q", endpoint, raw)
		h.writeError(w, http.StatusBadRequest, "month must be formatted as YYYY-MM")
		return time.Time{}, false
	}
	return month, true
}

// GetBudgetStatusHandler reports spending against the month's budget.
func (h *WalletHandlers) GetBudgetStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "budget_status")
	if !ok {
		return
	}
	month, ok := h.monthQueryParam(w, r, "budget_status")
	if !ok {
		return
	}

	status, err := h.service.GetBudgetStatus(r.Context(), userID, month)
	if err != nil {
		h.writeServiceError(w, "budget_status", err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

// SetBudgetHandler creates or replaces the budget for a month.
func (h *WalletHandlers) SetBudgetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "set_budget")
	if !ok {
		return
	}

	var req domain.SetBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=set_budget outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	budget, err := h.service.SetBudget(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "set_budget", err)
		return
	}
	h.writeJSON(w, http.StatusOK, budget)
}

// ListExpensesHandler returns the user's expenses for a month.
func (h *WalletHandlers) ListExpensesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "list_expenses")
	if !ok {
		return
	}
	month, ok := h.monthQueryParam(w, r, "list_expenses")
	if !ok {
		return
	}

	expenses, err := h.service.ListExpenses(r.Context(), userID, month)
	if err != nil {
		h.writeServiceError(w, "list_expenses", err)
		return
	}
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	h.writeJSON(w, http.StatusOK, expenses)
}

// CreateExpenseHandler records a manually entered expense.
func (h *WalletHandlers) CreateExpenseHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "create_expense")
	if !ok {
		return
	}

	var req domain.CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_expense outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	expense, err := h.service.CreateManualExpense(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, "create_expense", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, expense)
}
