package domain

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantStatus represents the state of a participant account.
type ParticipantStatus string

const (
	ParticipantStatusActive    ParticipantStatus = "ACTIVE"
	ParticipantStatusSuspended ParticipantStatus = "SUSPENDED"
)

// Participant is an authenticated identity in the ledger: a depositor, a
// certificate holder, or the administrator.
type Participant struct {
	ID           uuid.UUID         `json:"id"`
	Username     string            `json:"username"`
	PasswordHash string            `json:"-"` // Never expose
	DisplayName  string            `json:"display_name"`
	Status       ParticipantStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// IsActive returns true if the participant account is active.
func (p *Participant) IsActive() bool {
	return p.Status == ParticipantStatusActive
}
