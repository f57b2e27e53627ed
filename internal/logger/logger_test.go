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

func TestInitializeWithWriter(t *testing.T) {
	t.Cleanup(func() { Initialize("info", "text") })

	t.Run("Level filters messages", func(t *testing.T) {
		var buf bytes.Buffer
		InitializeWithWriter(&buf, "warn", "text")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		ErrorContext(context.Background(), "error message", "error", errors.New("boom"))

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error=boom")
	})

	t.Run("JSON format", func(t *testing.T) {
		var buf bytes.Buffer
		InitializeWithWriter(&buf, "debug", "JSON")

		WithService("connections").Info("started", "port", 8080)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "started", entry["msg"])
		assert.Equal(t, "connections", entry["service"])
		assert.Equal(t, float64(8080), entry["port"])
	})

	t.Run("Method tracking logs at debug", func(t *testing.T) {
		var buf bytes.Buffer
		InitializeWithWriter(&buf, "debug", "text")

		EnterMethod("svc.Do", "id", 1)
		ExitMethodWithError("svc.Do", errors.New("failed"))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "svc.Do")
		assert.Contains(t, lines[1], "failed")
	})
}
