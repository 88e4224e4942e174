// Package models tests for data model definitions.
package models

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================================================
// Hash Type Tests
// =====================================================

// TestParseHash_roundtrip verifies hex parsing and formatting agree.
func TestParseHash_roundtrip(t *testing.T) {
	sum := sha256.Sum256([]byte("bytes"))
	h := Hash(sum)

	parsed, err := ParseHash(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Len(t, h.String(), 64)
}

// TestParseHash_invalid verifies bad input is rejected.
func TestParseHash_invalid(t *testing.T) {
	_, err := ParseHash("abc")
	assert.Error(t, err)

	_, err = ParseHash(strings.Repeat("zz", 32))
	assert.Error(t, err)
}

// TestHash_ValueScan verifies BLOB round-trips through the driver interfaces.
func TestHash_ValueScan(t *testing.T) {
	h := Hash(sha256.Sum256([]byte("x")))

	v, err := h.Value()
	require.NoError(t, err)

	var scanned Hash
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, h, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	assert.Error(t, scanned.Scan([]byte{1, 2, 3}))
	assert.Error(t, scanned.Scan("not bytes"))
}

// =====================================================
// Job Tests
// =====================================================

// TestJob_Clone verifies Args is copied, not shared.
func TestJob_Clone(t *testing.T) {
	j := &Job{ID: "1", Type: "t", Args: json.RawMessage(`{"cursor":"a"}`)}
	c := j.Clone()
	c.Args[2] = 'X'

	assert.Equal(t, `{"cursor":"a"}`, string(j.Args))
	assert.Equal(t, j.ID, c.ID)
}

// =====================================================
// MediaType Tests
// =====================================================

// TestMediaType_Valid verifies the known media types.
func TestMediaType_Valid(t *testing.T) {
	assert.True(t, MediaPhoto.Valid())
	assert.True(t, MediaVideo.Valid())
	assert.True(t, MediaAnimatedGIF.Valid())
	assert.False(t, MediaType("audio").Valid())
}

// TestTableNames verifies table names match the schema.
func TestTableNames(t *testing.T) {
	assert.Equal(t, "jobs", Job{}.TableName())
	assert.Equal(t, "local_files", LocalFile{}.TableName())
	assert.Equal(t, "media", Media{}.TableName())
	assert.Equal(t, "posts", Post{}.TableName())
	assert.Equal(t, "users", User{}.TableName())
	assert.Equal(t, "likes", Like{}.TableName())
	assert.Equal(t, "like_staging", LikeStaging{}.TableName())
	assert.Equal(t, "sessions", Session{}.TableName())
}

// =====================================================
// Hashtag Tests
// =====================================================

// TestNormalizeTag verifies tags fold to one stored form.
func TestNormalizeTag(t *testing.T) {
	assert.Equal(t, "golang", NormalizeTag("#GoLang"))
	assert.Equal(t, "golang", NormalizeTag(" golang "))
	assert.Equal(t, NormalizeTag("Straße"), NormalizeTag("STRASSE"))
	assert.Empty(t, NormalizeTag("#"))
}
