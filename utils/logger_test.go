package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger()

	assert.NotNil(t, logger)
	assert.Equal(t, INFO, logger.level)
	assert.Equal(t, "text", logger.format)
	assert.Equal(t, os.Stdout, logger.output)
	assert.Equal(t, "schemalens", logger.service)
}

func TestLogger_SetLevel(t *testing.T) {
	logger := NewLogger()

	logger.SetLevel(DEBUG)
	assert.Equal(t, DEBUG, logger.level)

	logger.SetLevel(ERROR)
	assert.Equal(t, ERROR, logger.level)
}

func TestLogger_SetLevelFromString(t *testing.T) {
	logger := NewLogger()

	logger.SetLevelFromString("debug")
	assert.Equal(t, DEBUG, logger.level)

	logger.SetLevelFromString("WARN")
	assert.Equal(t, WARN, logger.level)

	// Unknown level falls back to info
	logger.SetLevelFromString("loud")
	assert.Equal(t, INFO, logger.level)
}

func TestLogger_SetFormat(t *testing.T) {
	logger := NewLogger()

	logger.SetFormat("JSON")
	assert.Equal(t, "json", logger.format)

	logger.SetFormat("TEXT")
	assert.Equal(t, "text", logger.format)
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger := NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel(WARN)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
}

func TestLogger_TextFormat(t *testing.T) {
	logger := NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("graph built",
		Component("coordinator"),
		String("mode", "schema"),
		Int("nodes", 12))

	output := buf.String()
	assert.Contains(t, output, "[INFO] graph built")
	assert.Contains(t, output, "component=coordinator")
	assert.Contains(t, output, "mode=schema")
	assert.Contains(t, output, "nodes=12")
}

func TestLogger_JSONFormat(t *testing.T) {
	logger := NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetFormat("json")

	logger.Info("snapshot cached",
		Component("snapshotcache"),
		Int64("ontology_version", 7),
		Bool("cache_used", true))

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "snapshot cached", entry.Message)
	assert.Equal(t, "schemalens", entry.Service)
	assert.Equal(t, "snapshotcache", entry.Component)
	assert.Equal(t, float64(7), entry.Fields["ontology_version"])
	assert.Equal(t, true, entry.Fields["cache_used"])
}

func TestLogger_ErrorField(t *testing.T) {
	logger := NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Error("discovery failed", errors.New("no entities"),
		Component("discovery"))

	output := buf.String()
	assert.Contains(t, output, "[ERROR] discovery failed")
	assert.Contains(t, output, "error=no entities")
}

func TestLogger_NilErrorOmitted(t *testing.T) {
	logger := NewLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Error("something failed", nil)

	assert.False(t, strings.Contains(buf.String(), "error="))
}

func TestGetLogger_Singleton(t *testing.T) {
	first := GetLogger()
	second := GetLogger()
	assert.Same(t, first, second)
}
