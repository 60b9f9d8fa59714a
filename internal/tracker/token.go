package tracker

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// TrackingIDLength is the fixed length of generated tracking identifiers.
const TrackingIDLength = 32

// NewTrackingID returns an opaque tracking identifier: 32 lowercase hex
// characters backed by 128 bits of randomness. The token carries no
// recipient, campaign or time information and is not enumerable.
func NewTrackingID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
