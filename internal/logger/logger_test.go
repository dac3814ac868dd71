package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", JSON: true, Output: &buf}).With("operation", "check_in")

	log.Info("attendance recorded", "subject", "user_123")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "attendance recorded", entry["msg"])
	assert.Equal(t, "check_in", entry["operation"])
	assert.Equal(t, "user_123", entry["subject"])
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Debug("hidden")
	log.Info("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
