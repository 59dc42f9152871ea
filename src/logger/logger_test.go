package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamedLoggerWritesComponent(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	log := NewLogger(nil, "hub")
	log.SetOutput(&buf)

	log.Named("ingest").Info("accepted %d bars", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ingest", line["component"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "accepted 3 bars", line["message"])
}

func TestConfigureRejectsInvalidValues(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := NewLogger(nil, "test")
	assert.Error(t, log.Configure("loud", "json", "stdout", 0))
	assert.Error(t, log.Configure("info", "xml", "stdout", 0))
	assert.NoError(t, log.Configure("debug", "text", "stderr", 0))
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	var buf bytes.Buffer
	log := NewLogger(nil, "test")
	log.SetOutput(&buf)

	log.Debug("hidden")
	assert.Zero(t, buf.Len())
}
