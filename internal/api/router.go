/**
 * @description
 * This file sets up the HTTP router for the wallet-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies the necessary middleware for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns the router for the wallet service.
func Routes(h *WalletHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Scheduler-facing endpoints guarded by the shared internal key.
	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))
		r.Post("/wallets/internal/sync", h.InternalSyncHandler)
	})

	// Group routes that require end-user authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwksURL))

		// Wallet linking and sync
		r.Get("/wallets", h.ListWalletsHandler)
		r.Post("/wallets/link-token", h.RequestLinkTokenHandler)
		r.Post("/wallets/exchange", h.ExchangePublicTokenHandler)
		r.Post("/wallets/{walletID}/sync", h.SyncWalletHandler)
		r.Post("/wallets/{walletID}/commit", h.CommitStagedHandler)
		r.Delete("/wallets/{walletID}", h.DisconnectWalletHandler)

		// Budget endpoints
		r.Get("/budget/status", h.GetBudgetStatusHandler)
		r.Put("/budget", h.SetBudgetHandler)

		// Expense ledger endpoints
		r.Get("/expenses", h.ListExpensesHandler)
		r.Post("/expenses", h.CreateExpenseHandler)
	})

	return r
}
