package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerParams is the single global parameter record. RateBps is read live by
// every accrual computation rather than snapshotted per position, so a rate
// change re-prices the full elapsed lifetime of every open position.
// NextPositionID is advanced inside the deposit transaction so a rolled-back
// deposit never consumes an id.
type LedgerParams struct {
	RateBps          int32     `json:"rate_bps"`
	AdminID          uuid.UUID `json:"admin_id"`
	IssuerKey        string    `json:"issuer_key"` // Sole identity allowed to mint/burn certificates
	ReserveAccountID uuid.UUID `json:"reserve_account_id"`
	NextPositionID   int64     `json:"next_position_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}
