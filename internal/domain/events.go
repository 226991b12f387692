package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncRequestedEvent is the message consumed from RabbitMQ when a scheduler
// asks for a background sync of one wallet.
type SyncRequestedEvent struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	UserID     uuid.UUID `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WalletSyncCompletedEvent is published after a successful sync.
type WalletSyncCompletedEvent struct {
	WalletID     uuid.UUID `json:"wallet_id"`
	UserID       uuid.UUID `json:"user_id"`
	AddedCount   int       `json:"added_count"`
	RemovedCount int       `json:"removed_count"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// WalletReauthRequiredEvent is published when the provider reports a revoked
// or expired credential during sync.
type WalletReauthRequiredEvent struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	UserID     uuid.UUID `json:"user_id"`
	Provider   string    `json:"provider"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ExpensesImportedEvent is published after a commit inserts new expense rows.
type ExpensesImportedEvent struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	UserID     uuid.UUID `json:"user_id"`
	Inserted   int       `json:"inserted"`
	OccurredAt time.Time `json:"occurred_at"`
}
