package domain

import (
	"time"
)

// Position is an open deposit record. Principal and StartTime are fixed at
// creation; Active flips to false exactly once, at withdrawal, and the
// position never reactivates.
type Position struct {
	ID        int64      `json:"id"`
	Principal int64      `json:"principal"` // In smallest unit of the base asset
	StartTime time.Time  `json:"start_time"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// ElapsedSeconds returns the accrual period for the position at the given
// clock reading. A reading earlier than StartTime (clock regression) is
// clamped to zero so accrual never goes negative.
func (p *Position) ElapsedSeconds(now time.Time) int64 {
	elapsed := now.Unix() - p.StartTime.Unix()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
