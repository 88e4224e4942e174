// Package uuid generates and validates job identifiers.
//
// Job ids are UUID v7: the leading 48 bits are a millisecond timestamp, so
// sorting ids lexically also sorts jobs by creation time.
package uuid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// xxxxxxxx-xxxx-7xxx-yxxx-xxxxxxxxxxxx, y in [8, 9, a, b]
var uuidV7Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// New generates a new time-ordered UUID v7.
// It falls back to v4 if the v7 generator cannot read randomness.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Parse parses an id and checks it is a v7 UUID.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid UUID: %w", err)
	}
	if id.Version() != 7 {
		return uuid.Nil, fmt.Errorf("expected UUID v7, got v%d", id.Version())
	}
	return id, nil
}

// IsValid checks if a string is a canonical lowercase UUID v7.
func IsValid(s string) bool {
	return uuidV7Regex.MatchString(s)
}
