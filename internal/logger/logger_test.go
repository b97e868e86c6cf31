package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	SetWriter(buf)
	t.Cleanup(func() {
		std = newStdLogger()
	})
	return buf
}

func TestSetLevel(t *testing.T) {
	t.Run("FiltersBelowLevel", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("warn")

		Info("hidden %d", 1)
		Warn("shown %d", 2)

		assert.NotContains(t, buf.String(), "hidden 1")
		assert.Contains(t, buf.String(), "shown 2")
	})

	t.Run("IgnoresUnknownLevel", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("ERROR")
		SetLevel("verbose")

		Warn("still filtered")
		assert.Empty(t, buf.String())
	})
}

func TestSetFormat(t *testing.T) {
	t.Run("JSONIncludesPathField", func(t *testing.T) {
		buf := captureOutput(t)
		require.NoError(t, SetFormat("json"))

		WithPath("/export/a.txt").Warn("corruption detected: %s", "unreadable")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "/export/a.txt", line["path"])
		assert.Equal(t, "corruption detected: unreadable", line["msg"])
		assert.Equal(t, "warning", line["level"])
	})

	t.Run("RejectsUnknownFormat", func(t *testing.T) {
		assert.Error(t, SetFormat("xml"))
	})
}

func TestSetOutput(t *testing.T) {
	t.Cleanup(func() {
		std = newStdLogger()
	})

	path := filepath.Join(t.TempDir(), "dittocheck.log")
	require.NoError(t, SetOutput(path))
	Info("written to file")

	assert.FileExists(t, path)
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
