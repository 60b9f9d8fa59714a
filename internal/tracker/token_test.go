package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackingID_Format(t *testing.T) {
	id := NewTrackingID()

	require.Len(t, id, TrackingIDLength)
	for _, c := range id {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'),
			"tracking id must be lowercase hex, got %q", id)
	}
}

func TestNewTrackingID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewTrackingID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate tracking id %s", id)
		seen[id] = struct{}{}
	}
}
