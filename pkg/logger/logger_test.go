package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_WritesFieldsAndCaller(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).WithContext(map[string]interface{}{"request_id": "req-1"})

	l.Error("transition failed", errors.New("boom"), map[string]interface{}{
		"session_id": "s-1",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "transition failed", entry["message"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "s-1", entry["session_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Contains(t, entry["caller"], "logger_test.go")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLogLevel("DEBUG").String())
	assert.Equal(t, "info", parseLogLevel("unknown").String())
	assert.Equal(t, "warn", parseLogLevel("warn").String())
}
