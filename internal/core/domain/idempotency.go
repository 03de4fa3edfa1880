package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog caches a deposit result so a retried request does not lock
// funds twice or burn a second position id.
type IdempotencyLog struct {
	Key          string    `json:"key"` // Format: "participant_id:reference_id"
	PositionID   int64     `json:"position_id"`
	ResponseJSON []byte    `json:"response_json"` // Cached response to return
	CreatedAt    time.Time `json:"created_at"`
}

// BuildDepositIdempotencyKey constructs the standard key format.
func BuildDepositIdempotencyKey(participantID uuid.UUID, referenceID string) string {
	return participantID.String() + ":" + referenceID
}
