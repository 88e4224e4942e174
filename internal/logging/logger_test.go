// Package logging tests for structured logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================================================
// Helpers
// =====================================================

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line %q", line)
		entries = append(entries, entry)
	}
	return entries
}

// =====================================================
// Level Tests
// =====================================================

// TestParseLevel verifies config strings map onto levels.
func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

// TestLogger_minLevel verifies messages below the minimum level are dropped.
func TestLogger_minLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Out: &buf, Level: LevelWarn})

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warn message", entries[0]["message"])
	assert.Equal(t, "warning", entries[0]["level"])
}

// =====================================================
// Structured Output Tests
// =====================================================

// TestLogger_contextFields verifies context maps are merged into fields.
func TestLogger_contextFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Out: &buf, Level: LevelDebug})

	l.Info("page committed",
		map[string]interface{}{"job_id": "j1"},
		map[string]interface{}{"posts": 20})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "j1", entries[0]["job_id"])
	assert.EqualValues(t, 20, entries[0]["posts"])
	assert.Contains(t, entries[0], "timestamp")
}

// TestLogger_errorField verifies errors are attached to the entry.
func TestLogger_errorField(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Out: &buf, Level: LevelInfo})

	l.Error("job failed", errors.New("rate limited"), map[string]interface{}{"job_id": "j2"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "rate limited", entries[0]["error"])
	assert.Equal(t, "error", entries[0]["level"])
}

// TestLogger_textFormat verifies the text formatter is selectable.
func TestLogger_textFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Out: &buf, Format: "text"})

	l.Info("hello", map[string]interface{}{"k": "v"})

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "k=v")
}

// =====================================================
// Global Logger Tests
// =====================================================

// TestInit_replacesGlobal verifies Init swaps the global logger.
func TestInit_replacesGlobal(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Out: &buf, Level: LevelInfo})
	defer Init(Options{})

	Info("global message")
	assert.Contains(t, buf.String(), "global message")
	assert.Equal(t, LevelInfo, Get().Level())
}

// TestInit_fileRotation verifies file output goes through the rotator.
func TestInit_fileRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "likevault.log")
	Init(Options{File: path, MaxSizeMB: 1})

	Warn("to file")
	require.NoError(t, Close())
	Init(Options{})

	assert.FileExists(t, path)
}
