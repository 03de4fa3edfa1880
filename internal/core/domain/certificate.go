package domain

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is the transferable token that entitles its holder to redeem
// the position with the same id. It exists exactly as long as the position is
// active: minted at deposit, burned at withdrawal, id never reissued.
type Certificate struct {
	ID          int64      `json:"id"`
	Holder      uuid.UUID  `json:"holder"`
	Delegate    *uuid.UUID `json:"delegate,omitempty"` // Approved to transfer on the holder's behalf
	MetadataURI *string    `json:"metadata_uri,omitempty"`
	IssuedAt    time.Time  `json:"issued_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CanTransfer reports whether caller may reassign the certificate: only the
// current holder or the approved delegate.
func (c *Certificate) CanTransfer(caller uuid.UUID) bool {
	if caller == c.Holder {
		return true
	}
	return c.Delegate != nil && *c.Delegate == caller
}
