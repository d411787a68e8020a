package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	l, err := NewLogger(&Config{Level: DebugLevel, Format: format, AppName: "SafeHer", Version: "test"})
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	l.SetOutput(buf)
	return l, buf
}

func TestJSONFormatterIncludesFieldsAndAppInfo(t *testing.T) {
	l, buf := newBufferLogger(t, "json")

	l.WithSessionID("s-1").WithError(errors.New("boom")).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "SafeHer", entry["app"])
	assert.Equal(t, "test", entry["version"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	l, buf := newBufferLogger(t, "json")

	child := l.WithField("a", 1)
	l.Info("parent")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["a"]
	assert.False(t, ok)
	assert.NotNil(t, child)
}

func TestWithContextExtractsSessionAndRequest(t *testing.T) {
	l, buf := newBufferLogger(t, "text")

	ctx := context.WithValue(context.Background(), SessionIDKey, "s-9")
	ctx = context.WithValue(ctx, RequestIDKey, "r-3")
	l.WithContext(ctx).Warn("ctx")

	out := buf.String()
	assert.True(t, strings.Contains(out, "session_id=s-9"), out)
	assert.True(t, strings.Contains(out, "request_id=r-3"), out)
	assert.True(t, strings.Contains(out, "[SafeHer]"), out)
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(t, "text")
	l.SetLevel(ErrorLevel)

	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
