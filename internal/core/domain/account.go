package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account holds a participant's base-asset balance. The vault's reserve is an
// ordinary account owned by a system participant; deposits move funds from
// the depositor's account into the reserve and withdrawals move them back out
// to whoever holds the certificate.
type Account struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Balance       int64     `json:"balance"` // In smallest unit, never negative
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
