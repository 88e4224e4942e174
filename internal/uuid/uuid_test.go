// Package uuid provides unit tests for job id generation and validation.
package uuid

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew verifies New produces valid v7 ids.
func TestNew(t *testing.T) {
	id := New()
	assert.True(t, IsValid(id), "not a v7 id: %s", id)

	parsed, err := Parse(id)
	require.NoError(t, err)
	assert.EqualValues(t, 7, parsed.Version())
}

// TestNew_uniqueness verifies New does not repeat.
func TestNew_uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		require.False(t, ids[id], "duplicate id %s", id)
		ids[id] = true
	}
}

// TestNew_timeOrdered verifies ids sort by creation time.
func TestNew_timeOrdered(t *testing.T) {
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, New())
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids not ordered: %v", ids)
}

// TestParse_rejects verifies malformed and non-v7 ids are rejected.
func TestParse_rejects(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"garbage", "not-a-uuid"},
		{"v4", "f47ac10b-58cc-4372-a567-0e02b2c3d479"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.id)
			assert.Error(t, err)
			assert.False(t, IsValid(tt.id))
		})
	}
}
