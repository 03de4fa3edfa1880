package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a durable ledger event.
type EventKind string

const (
	EventKindIssuance     EventKind = "ISSUANCE"
	EventKindWithdrawal   EventKind = "WITHDRAWAL"
	EventKindRateChange   EventKind = "RATE_CHANGE"
	EventKindIssuerRebind EventKind = "ISSUER_REBIND"
	EventKindTransfer     EventKind = "CERTIFICATE_TRANSFER"
	EventKindReserveTopup EventKind = "RESERVE_TOPUP"
	EventKindAdminHandoff EventKind = "ADMIN_HANDOFF"
)

// LedgerEvent is the audit trail. Issuance, withdrawal and rate-change events
// are written in the same transaction as the state change they record; the
// events table is the system's only log store.
type LedgerEvent struct {
	ID           uuid.UUID  `json:"id"`
	Kind         EventKind  `json:"kind"`
	PositionID   *int64     `json:"position_id,omitempty"`
	Counterparty *uuid.UUID `json:"counterparty,omitempty"`
	Amount       *int64     `json:"amount,omitempty"`
	OldRateBps   *int32     `json:"old_rate_bps,omitempty"`
	NewRateBps   *int32     `json:"new_rate_bps,omitempty"`
	Details      *string    `json:"details,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
