package service

import (
	"time"

	"custodial-deposit-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// newEvent builds an event shell; callers fill the kind-specific fields
// before persisting it inside their transaction.
func newEvent(kind domain.EventKind) *domain.LedgerEvent {
	return &domain.LedgerEvent{
		ID:        uuid.New(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}
