/**
 * @description
 * This file contains the HTTP handlers for the wallet linking and sync
 * endpoints. Handlers parse incoming requests, call the appropriate methods
 * on the application service, and write the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pennyflow/wallet-service/internal/app"
	"github.com/pennyflow/wallet-service/internal/domain"
	"github.com/pennyflow/wallet-service/internal/store"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}

// resolveUser resolves the authenticated token subject into the internal user
// UUID, writing the error response itself when that fails.
func (h *WalletHandlers) resolveUser(w http.ResponseWriter, r *http.Request, endpoint string) (uuid.UUID, bool) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return uuid.Nil, false
	}

	internalIDStr, err := h.service.ResolveInternalUserID(r.Context(), subject)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=user_resolution_failed subject=%s err=%v", endpoint, subject, err)
		h.writeError(w, http.StatusBadRequest, "User not found")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(internalIDStr)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_user_id internal_user_id=%s", endpoint, internalIDStr)
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *WalletHandlers) walletIDParam(w http.ResponseWriter, r *http.Request, endpoint string) (uuid.UUID, bool) {
	walletID, err := uuid.Parse(chi.URLParam(r, "walletID"))
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_wallet_id value=%q", endpoint, chi.URLParam(r, "walletID"))
		h.writeError(w, http.StatusBadRequest, "Invalid wallet ID")
		return uuid.Nil, false
	}
	return walletID, true
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func (h *WalletHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, store.ErrWalletNotFound):
		h.writeError(w, http.StatusNotFound, "Wallet not found")
	case errors.Is(err, store.ErrBudgetNotFound):
		h.writeError(w, http.StatusNotFound, "No budget set for this month")
	case errors.Is(err, app.ErrProviderUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "The account provider is temporarily unavailable. Please try again.")
	case errors.Is(err, app.ErrExchangeFailed):
		h.writeError(w, http.StatusUnprocessableEntity, "The linking session expired or was already used. Please restart linking.")
	case errors.Is(err, app.ErrReauthRequired):
		h.writeError(w, http.StatusConflict, "This wallet needs to be reconnected before it can be synced.")
	case errors.Is(err, app.ErrSyncFailed):
		h.writeError(w, http.StatusBadGateway, "Syncing transactions failed. Nothing was lost; please try again.")
	case errors.Is(err, app.ErrSyncRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "This wallet was synced very recently. Please wait a moment.")
	case errors.Is(err, app.ErrEmptyCommit),
		errors.Is(err, app.ErrMissingTransactionID),
		errors.Is(err, app.ErrMissingTransactionDate),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidCurrency),
		errors.Is(err, app.ErrInvalidMonth):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s msg=\"unhandled service error\" err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ListWalletsHandler returns the caller's linked wallets.
func (h *WalletHandlers) ListWalletsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "list_wallets")
	if !ok {
		return
	}

	wallets, err := h.service.ListWallets(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, "list_wallets", err)
		return
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}
	h.writeJSON(w, http.StatusOK, wallets)
}

// RequestLinkTokenHandler starts a new wallet linking flow.
func (h *WalletHandlers) RequestLinkTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "request_link_token")
	if !ok {
		return
	}

	token, err := h.service.RequestLinkToken(r.Context(), userID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=request_link_token outcome=failed user_id=%s err=%v", userID, err)
		h.writeServiceError(w, "request_link_token", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, token)
}

// ExchangePublicTokenHandler completes a linking flow, persisting the wallet.
func (h *WalletHandlers) ExchangePublicTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "exchange_public_token")
	if !ok {
		return
	}

	var req domain.ExchangePublicTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=exchange_public_token outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	wallet, err := h.service.ExchangePublicToken(r.Context(), userID, req.PublicToken, req.WalletName)
	if err != nil {
		log.Printf("level=warn component=api endpoint=exchange_public_token outcome=failed user_id=%s err=%v", userID, err)
		h.writeServiceError(w, "exchange_public_token", err)
		return
	}

	log.Printf("level=info component=api endpoint=exchange_public_token outcome=ok user_id=%s wallet_id=%s", userID, wallet.ID)
	h.writeJSON(w, http.StatusCreated, wallet)
}

// SyncWalletHandler pulls fresh transactions and returns them staged for
// review. Already-imported transactions are filtered out.
func (h *WalletHandlers) SyncWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "sync_wallet")
	if !ok {
		return
	}
	walletID, ok := h.walletIDParam(w, r, "sync_wallet")
	if !ok {
		return
	}

	staged, err := h.service.ListStagedForReview(r.Context(), userID, walletID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=sync_wallet outcome=failed wallet_id=%s err=%v", walletID, err)
		h.writeServiceError(w, "sync_wallet", err)
		return
	}
	if staged == nil {
		staged = []domain.StagedTransaction{}
	}
	h.writeJSON(w, http.StatusOK, staged)
}

// CommitStagedHandler saves reviewed transactions as expenses.
func (h *WalletHandlers) CommitStagedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "commit_staged")
	if !ok {
		return
	}
	walletID, ok := h.walletIDParam(w, r, "commit_staged")
	if !ok {
		return
	}

	var req domain.CommitStagedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=commit_staged outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	inserted, err := h.service.CommitStaged(r.Context(), userID, walletID, req.Transactions)
	if err != nil {
		log.Printf("level=warn component=api endpoint=commit_staged outcome=failed wallet_id=%s err=%v", walletID, err)
		h.writeServiceError(w, "commit_staged", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.CommitStagedResponse{Inserted: inserted})
}

// DisconnectWalletHandler revokes the provider credential and removes the wallet.
func (h *WalletHandlers) DisconnectWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "disconnect_wallet")
	if !ok {
		return
	}
	walletID, ok := h.walletIDParam(w, r, "disconnect_wallet")
	if !ok {
		return
	}

	if err := h.service.DisconnectWallet(r.Context(), userID, walletID); err != nil {
		log.Printf("level=warn component=api endpoint=disconnect_wallet outcome=failed wallet_id=%s err=%v", walletID, err)
		h.writeServiceError(w, "disconnect_wallet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// internalSyncRequest is the scheduler's payload for triggering one sync.
type internalSyncRequest struct {
	UserID   uuid.UUID `json:"user_id"`
	WalletID uuid.UUID `json:"wallet_id"`
}

// InternalSyncHandler lets the scheduler trigger a background sync over HTTP
// when the message broker is unavailable. Guarded by the internal API key.
func (h *WalletHandlers) InternalSyncHandler(w http.ResponseWriter, r *http.Request) {
	var req internalSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.UserID == uuid.Nil || req.WalletID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "user_id and wallet_id are required")
		return
	}

	result, err := h.service.SyncWallet(r.Context(), req.UserID, req.WalletID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=internal_sync outcome=failed wallet_id=%s err=%v", req.WalletID, err)
		h.writeServiceError(w, "internal_sync", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"added":   len(result.Added),
		"removed": len(result.Removed),
	})
}
