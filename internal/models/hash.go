// Package models provides data model definitions for the likevault archive.
package models

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// HashSize is the width of a content hash in bytes (SHA-256).
const HashSize = 32

// Hash is a fixed-width content digest stored as a BLOB.
type Hash [HashSize]byte

// ParseHash decodes a 64-character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != HashSize*2 {
		return h, fmt.Errorf("invalid content hash length: %d", len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("invalid content hash: %w", err)
	}
	return h, nil
}

// HashFromBytes copies a raw digest into a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid content hash length: %d bytes", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hex returns the lowercase hex encoding.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Hex()
}

// IsZero reports whether h is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Value implements driver.Valuer for Hash.
func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

// Scan implements sql.Scanner for Hash.
func (h *Hash) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*h = Hash{}
		return nil
	case []byte:
		parsed, err := HashFromBytes(v)
		if err != nil {
			return err
		}
		*h = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Hash", value)
	}
}
