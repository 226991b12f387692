/**
 * @description
 * This file contains the core business logic for the wallet-service. The
 * `Service` struct orchestrates the wallet linking flow, incremental
 * transaction sync, staged review, and the idempotent commit of imported
 * transactions into the expense ledger.
 *
 * Key features:
 * - Link token issuance and public token exchange against the aggregation provider.
 * - Cursor-based incremental sync: the cursor is persisted only after a fully
 *   successful fetch, so a failed or aborted sync re-fetches the same window.
 * - Deterministic classification of fetched transactions.
 * - Commit via conditional inserts keyed on the provider transaction id, so
 *   repeated commits never double-import.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/classify, internal/domain, internal/store: Classification, domain
 *   models and data access.
 * - pkg/aggregatorclient, pkg/rabbitmq: External service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pennyflow/wallet-service/internal/classify"
	"github.com/pennyflow/wallet-service/internal/domain"
	"github.com/pennyflow/wallet-service/internal/store"
	"github.com/pennyflow/wallet-service/pkg/aggregatorclient"
	"github.com/pennyflow/wallet-service/pkg/rabbitmq"
)

// EventsExchange is the topic exchange all wallet-service events go through.
const EventsExchange = "pennyflow.events"

// Routing keys for published and consumed events.
const (
	RoutingKeySyncCompleted    = "wallet.sync.completed"
	RoutingKeyReauthRequired   = "wallet.reauth.required"
	RoutingKeyExpensesImported = "expense.imported"
	RoutingKeySyncRequested    = "wallet.sync.requested"
)

var (
	ErrProviderUnavailable = errors.New("aggregation provider unavailable")
	ErrExchangeFailed      = errors.New("public token exchange failed")
	ErrSyncFailed          = errors.New("transaction sync failed")
	ErrReauthRequired      = errors.New("wallet requires reconnection")
	ErrSyncRateLimited     = errors.New("sync rate limit exceeded")

	ErrEmptyCommit            = errors.New("no transactions to commit")
	ErrMissingTransactionID   = errors.New("staged transaction is missing its provider transaction id")
	ErrMissingTransactionDate = errors.New("staged transaction is missing its date")
	ErrInvalidAmount          = errors.New("expense amount must be nonzero")
	ErrInvalidCurrency        = errors.New("currency must be a 3-letter code")
	ErrInvalidMonth           = errors.New("month must be formatted as YYYY-MM")
)

// Provider is the aggregation provider surface the service depends on. The
// concrete implementation is aggregatorclient.Client; tests substitute fakes.
type Provider interface {
	CreateLinkToken(ctx context.Context, userID string) (*aggregatorclient.LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*aggregatorclient.ExchangeResponse, error)
	SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*aggregatorclient.SyncPage, error)
	RemoveItem(ctx context.Context, accessToken string) error
}

// SyncRateLimiter bounds how often one wallet can be synced. A nil limiter
// disables the bound.
type SyncRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for wallet linking and import.
type Service struct {
	repo            store.Repository
	provider        Provider
	providerName    string
	eventProducer   rabbitmq.Publisher
	credentials     *CredentialCipher
	rateLimiter     SyncRateLimiter
	syncLimitPerMin int
	defaultCurrency string
}

// NewService creates a new wallet service instance.
func NewService(repo store.Repository, provider Provider, providerName string, producer rabbitmq.Publisher, credentials *CredentialCipher, defaultCurrency string) *Service {
	if producer == nil {
		producer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:            repo,
		provider:        provider,
		providerName:    providerName,
		eventProducer:   producer,
		credentials:     credentials,
		defaultCurrency: defaultCurrency,
	}
}

// SetSyncRateLimiter wires an optional distributed rate limiter for sync calls.
func (s *Service) SetSyncRateLimiter(limiter SyncRateLimiter, limitPerMinute int) {
	s.rateLimiter = limiter
	s.syncLimitPerMin = limitPerMinute
}

// ResolveInternalUserID converts an auth token subject (e.g., "user_abc123")
// into the internal UUID used by the database. Handlers accept subjects from
// validated JWTs while repositories operate on UUIDs.
func (s *Service) ResolveInternalUserID(ctx context.Context, authSubject string) (string, error) {
	return s.repo.FindUserIDByAuthSubject(ctx, authSubject)
}

// RequestLinkToken asks the provider for a new short-lived link token scoped
// to the user. Provider failures surface as ErrProviderUnavailable; nothing is
// persisted, so the caller can simply retry.
func (s *Service) RequestLinkToken(ctx context.Context, userID uuid.UUID) (*domain.LinkTokenResponse, error) {
	resp, err := s.provider.CreateLinkToken(ctx, userID.String())
	if err != nil {
		log.Printf("level=warn component=app op=request_link_token user_id=%s err=%v", userID, err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return &domain.LinkTokenResponse{LinkToken: resp.LinkToken, Expiration: resp.Expiration}, nil
}

// ExchangePublicToken trades a completed-flow public token for a long-lived
// access credential and persists the wallet. The write is an atomic upsert
// keyed on (user, provider, item id): re-linking the same account overwrites
// the stored credential instead of creating a duplicate row.
func (s *Service) ExchangePublicToken(ctx context.Context, userID uuid.UUID, publicToken, walletName string) (*domain.Wallet, error) {
	if strings.TrimSpace(publicToken) == "" {
		return nil, ErrExchangeFailed
	}

	resp, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		var apiErr *aggregatorclient.APIError
		if errors.As(err, &apiErr) && apiErr.InvalidToken() {
			// Public tokens are single-use; an expired or reused token means the
			// link session is dead and the user must restart the flow.
			return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	encrypted, err := s.credentials.Encrypt(resp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access credential: %w", err)
	}

	name := strings.TrimSpace(walletName)
	if name == "" {
		name = s.providerName
	}

	wallet, err := s.repo.UpsertWalletByProviderItem(ctx, store.UpsertWalletParams{
		UserID:           userID,
		Provider:         s.providerName,
		WalletName:       name,
		ProviderItemID:   resp.ItemID,
		AccessCredential: encrypted,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=app op=exchange_public_token user_id=%s wallet_id=%s item_id=%s", userID, wallet.ID, resp.ItemID)
	return wallet, nil
}

// ListWallets returns the user's linked wallets.
func (s *Service) ListWallets(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	return s.repo.ListWalletsByUserID(ctx, userID)
}

// SyncWallet pulls new and changed transactions from the provider for one
// wallet, classifies them, and returns them staged for review. Nothing is
// written to the expense ledger here.
//
// Cursor semantics: the stored cursor is replaced only after the provider
// fetch and the mapping both succeed. Any failure leaves the old cursor, so
// the next sync repeats the same window (at-least-once); the commit dedup key
// makes that repetition safe.
func (s *Service) SyncWallet(ctx context.Context, userID uuid.UUID, walletID uuid.UUID) (*domain.SyncResult, error) {
	wallet, err := s.repo.FindWalletByID(ctx, walletID, userID)
	if err != nil {
		return nil, err
	}
	if wallet.Status == domain.WalletStatusReauthRequired {
		return nil, ErrReauthRequired
	}

	if s.rateLimiter != nil && s.syncLimitPerMin > 0 {
		count, retryAfter, limitErr := s.rateLimiter.ConsumeRateLimit(ctx, "wallet_sync", wallet.ID.String(), s.syncLimitPerMin, time.Minute)
		if limitErr != nil {
			// A broken limiter must not block syncing.
			log.Printf("level=warn component=app op=sync msg=\"rate limiter unavailable; proceeding\" wallet_id=%s err=%v", wallet.ID, limitErr)
		} else if count > s.syncLimitPerMin {
			log.Printf("level=warn component=app op=sync outcome=rate_limited wallet_id=%s retry_after_s=%d", wallet.ID, retryAfter)
			return nil, ErrSyncRateLimited
		}
	}

	accessToken, err := s.credentials.Decrypt(wallet.AccessCredential)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access credential: %w", err)
	}

	page, err := s.provider.SyncTransactions(ctx, accessToken, wallet.LastSyncCursor)
	if err != nil {
		var apiErr *aggregatorclient.APIError
		if errors.As(err, &apiErr) && apiErr.AuthRevoked() {
			return nil, s.flagReauthRequired(ctx, wallet, err)
		}
		log.Printf("level=warn component=app op=sync outcome=failed wallet_id=%s err=%v", wallet.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	staged, removed, err := s.stageTransactions(page)
	if err != nil {
		// Mapping failure: cursor stays put so the window is re-fetched.
		return nil, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	if err := s.repo.UpdateWalletCursor(ctx, wallet.ID, page.NextCursor); err != nil {
		return nil, fmt.Errorf("%w: cursor update failed: %v", ErrSyncFailed, err)
	}

	if err := s.eventProducer.Publish(ctx, EventsExchange, RoutingKeySyncCompleted, domain.WalletSyncCompletedEvent{
		WalletID:     wallet.ID,
		UserID:       userID,
		AddedCount:   len(staged),
		RemovedCount: len(removed),
		OccurredAt:   time.Now().UTC(),
	}); err != nil {
		log.Printf("level=warn component=app op=sync msg=\"sync completed event publish failed\" wallet_id=%s err=%v", wallet.ID, err)
	}

	log.Printf("level=info component=app op=sync outcome=ok wallet_id=%s added=%d removed=%d", wallet.ID, len(staged), len(removed))
	return &domain.SyncResult{WalletID: wallet.ID, Added: staged, Removed: removed}, nil
}

// flagReauthRequired marks the wallet as needing reconnection and notifies
// downstream consumers. Sync must not be retried blindly until the user
// relinks.
func (s *Service) flagReauthRequired(ctx context.Context, wallet *domain.Wallet, cause error) error {
	log.Printf("level=warn component=app op=sync outcome=reauth_required wallet_id=%s err=%v", wallet.ID, cause)
	if err := s.repo.UpdateWalletStatus(ctx, wallet.ID, domain.WalletStatusReauthRequired); err != nil {
		log.Printf("level=error component=app op=sync msg=\"failed to flag wallet for reauth\" wallet_id=%s err=%v", wallet.ID, err)
	}
	if err := s.eventProducer.Publish(ctx, EventsExchange, RoutingKeyReauthRequired, domain.WalletReauthRequiredEvent{
		WalletID:   wallet.ID,
		UserID:     wallet.UserID,
		Provider:   wallet.Provider,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		log.Printf("level=warn component=app op=sync msg=\"reauth event publish failed\" wallet_id=%s err=%v", wallet.ID, err)
	}
	return fmt.Errorf("%w: %v", ErrReauthRequired, cause)
}

// stageTransactions maps provider transactions (added and modified alike)
// into the staged shape, classifying each one.
func (s *Service) stageTransactions(page *aggregatorclient.SyncPage) ([]domain.StagedTransaction, []string, error) {
	staged := make([]domain.StagedTransaction, 0, len(page.Added)+len(page.Modified))
	for _, tx := range append(append([]aggregatorclient.Transaction{}, page.Added...), page.Modified...) {
		mapped, err := s.stageOne(tx)
		if err != nil {
			return nil, nil, err
		}
		staged = append(staged, mapped)
	}

	removed := make([]string, 0, len(page.Removed))
	for _, r := range page.Removed {
		removed = append(removed, r.TransactionID)
	}
	return staged, removed, nil
}

func (s *Service) stageOne(tx aggregatorclient.Transaction) (domain.StagedTransaction, error) {
	if tx.TransactionID == "" {
		return domain.StagedTransaction{}, errors.New("provider transaction has no id")
	}
	date, err := time.Parse("2006-01-02", tx.Date)
	if err != nil {
		return domain.StagedTransaction{}, fmt.Errorf("provider transaction %s has invalid date %q: %w", tx.TransactionID, tx.Date, err)
	}

	merchantText := tx.MerchantName
	if merchantText == "" {
		merchantText = tx.Name
	}
	currency := tx.CurrencyCode
	if currency == "" {
		currency = s.defaultCurrency
	}

	return domain.StagedTransaction{
		ProviderTransactionID: tx.TransactionID,
		Amount:                tx.Amount,
		Currency:              currency,
		Description:           tx.Name,
		Category:              classify.Classify(merchantText, tx.MCC),
		Date:                  date,
	}, nil
}

// ListStagedForReview syncs the wallet and returns only the staged
// transactions the user has not already imported, so a stale review screen
// does not re-show committed rows.
func (s *Service) ListStagedForReview(ctx context.Context, userID uuid.UUID, walletID uuid.UUID) ([]domain.StagedTransaction, error) {
	result, err := s.SyncWallet(ctx, userID, walletID)
	if err != nil {
		return nil, err
	}
	if len(result.Added) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(result.Added))
	for _, tx := range result.Added {
		ids = append(ids, tx.ProviderTransactionID)
	}
	existing, err := s.repo.FindExpenseProviderTransactionIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}

	staged := make([]domain.StagedTransaction, 0, len(result.Added))
	for _, tx := range result.Added {
		if _, ok := seen[tx.ProviderTransactionID]; ok {
			continue
		}
		staged = append(staged, tx)
	}
	return staged, nil
}

// CommitStaged inserts reviewed transactions as expenses. The user may have
// edited description, amount and category, but the provider transaction id is
// the dedup key and is preserved through edits. Each row is written with a
// conditional insert keyed on (user, provider transaction id); already
// imported ids are silently skipped, so committing the same set twice inserts
// nothing the second time.
func (s *Service) CommitStaged(ctx context.Context, userID uuid.UUID, walletID uuid.UUID, edited []domain.StagedTransaction) (int, error) {
	if len(edited) == 0 {
		return 0, ErrEmptyCommit
	}

	wallet, err := s.repo.FindWalletByID(ctx, walletID, userID)
	if err != nil {
		return 0, err
	}

	rows := make([]domain.Expense, 0, len(edited))
	for _, tx := range edited {
		if strings.TrimSpace(tx.ProviderTransactionID) == "" {
			return 0, ErrMissingTransactionID
		}
		if tx.Date.IsZero() {
			return 0, ErrMissingTransactionDate
		}
		providerTxID := tx.ProviderTransactionID
		walletRef := wallet.ID
		currency := tx.Currency
		if currency == "" {
			currency = s.defaultCurrency
		}
		category := tx.Category
		if category == "" {
			category = classify.Uncategorized
		}
		rows = append(rows, domain.Expense{
			UserID:                userID,
			WalletID:              &walletRef,
			ProviderTransactionID: &providerTxID,
			Amount:                tx.Amount,
			Currency:              currency,
			Description:           tx.Description,
			Category:              category,
			Source:                domain.ExpenseSourceWalletImport,
			SpentAt:               tx.Date,
		})
	}

	inserted, err := s.repo.InsertExpensesIfAbsent(ctx, rows)
	if err != nil {
		return inserted, err
	}

	if inserted > 0 {
		if err := s.eventProducer.Publish(ctx, EventsExchange, RoutingKeyExpensesImported, domain.ExpensesImportedEvent{
			WalletID:   wallet.ID,
			UserID:     userID,
			Inserted:   inserted,
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			log.Printf("level=warn component=app op=commit msg=\"import event publish failed\" wallet_id=%s err=%v", wallet.ID, err)
		}
	}

	log.Printf("level=info component=app op=commit outcome=ok wallet_id=%s submitted=%d inserted=%d skipped=%d", wallet.ID, len(edited), inserted, len(edited)-inserted)
	return inserted, nil
}

// DisconnectWallet revokes the provider credential and deletes the wallet
// row. A transient provider failure aborts the delete so the credential is
// never orphaned; an already-revoked item proceeds to deletion.
func (s *Service) DisconnectWallet(ctx context.Context, userID uuid.UUID, walletID uuid.UUID) error {
	wallet, err := s.repo.FindWalletByID(ctx, walletID, userID)
	if err != nil {
		return err
	}

	accessToken, err := s.credentials.Decrypt(wallet.AccessCredential)
	if err != nil {
		return fmt.Errorf("failed to decrypt access credential: %w", err)
	}

	if err := s.provider.RemoveItem(ctx, accessToken); err != nil {
		var apiErr *aggregatorclient.APIError
		if !errors.As(err, &apiErr) || !(apiErr.AuthRevoked() || apiErr.ErrorCode == aggregatorclient.CodeItemNotFound) {
			return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		log.Printf("level=info component=app op=disconnect msg=\"item already revoked at provider\" wallet_id=%s", wallet.ID)
	}

	if err := s.repo.DeleteWallet(ctx, walletID, userID); err != nil {
		return err
	}
	log.Printf("level=info component=app op=disconnect outcome=ok wallet_id=%s user_id=%s", walletID, userID)
	return nil
}

// CreateManualExpense logs an expense entered by hand. Manual rows have no
// provider transaction id and never participate in import deduplication. When
// the caller omits a category the classifier infers one from the description.
func (s *Service) CreateManualExpense(ctx context.Context, userID uuid.UUID, req domain.CreateExpenseRequest) (*domain.Expense, error) {
	if req.Amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrency
	}
	spentAt := req.SpentAt
	if spentAt.IsZero() {
		spentAt = time.Now().UTC()
	}
	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = classify.Classify(req.Description, nil)
	}

	expense := &domain.Expense{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
		Category:    category,
		Source:      domain.ExpenseSourceManual,
		SpentAt:     spentAt,
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpenses returns the user's expenses for one calendar month.
func (s *Service) ListExpenses(ctx context.Context, userID uuid.UUID, month time.Time) ([]domain.Expense, error) {
	start, end := monthBounds(month)
	return s.repo.ListExpensesByMonth(ctx, userID, start, end)
}

func monthBounds(month time.Time) (time.Time, time.Time) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// ParseMonth parses a YYYY-MM string into the first instant of that month.
func ParseMonth(value string) (time.Time, error) {
	month, err := time.Parse("2006-01", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ErrInvalidMonth
	}
	return month, nil
}
