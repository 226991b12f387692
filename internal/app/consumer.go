package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pennyflow/wallet-service/internal/domain"
	"github.com/pennyflow/wallet-service/internal/store"
)

// SyncRequestConsumer handles wallet.sync.requested messages published by the
// scheduler. A background sync advances the wallet's cursor and emits the
// completion event; the staged set is discarded, since review is an
// interactive flow and re-fetching the window later is safe by the dedup key.
type SyncRequestConsumer struct {
	service *Service
}

// SyncRequestConsumer returns the consumer bound to this service instance.
func (s *Service) SyncRequestConsumer() *SyncRequestConsumer {
	return &SyncRequestConsumer{service: s}
}

// HandleMessage processes one delivery. Returning false re-queues the
// message; malformed payloads and permanent conditions are acked so they do
// not loop forever.
func (c *SyncRequestConsumer) HandleMessage(body []byte) bool {
	var event domain.SyncRequestedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=sync_consumer msg=\"failed to unmarshal payload; dropping\" err=%v", err)
		return true
	}

	if event.WalletID == uuid.Nil || event.UserID == uuid.Nil {
		log.Printf("level=warn component=sync_consumer msg=\"missing wallet or user id; dropping\" payload=%s", string(body))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err := c.service.SyncWallet(ctx, event.UserID, event.WalletID)
	if err == nil {
		return true
	}

	switch {
	case errors.Is(err, store.ErrWalletNotFound):
		// Wallet was disconnected after the message was scheduled.
		log.Printf("level=info component=sync_consumer msg=\"wallet gone; dropping\" wallet_id=%s", event.WalletID)
		return true
	case errors.Is(err, ErrReauthRequired):
		// Retrying cannot help until the user relinks; the reauth event has
		// already been published.
		log.Printf("level=warn component=sync_consumer msg=\"wallet needs reconnection; dropping\" wallet_id=%s", event.WalletID)
		return true
	case errors.Is(err, ErrSyncRateLimited):
		log.Printf("level=warn component=sync_consumer msg=\"rate limited; re-queuing\" wallet_id=%s", event.WalletID)
		return false
	default:
		log.Printf("level=warn component=sync_consumer msg=\"sync failed; re-queuing\" wallet_id=%s err=%v", event.WalletID, err)
		return false
	}
}
