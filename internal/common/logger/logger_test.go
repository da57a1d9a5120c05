package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntriesAreJSONLines(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter("order-api", &buf)

	lg.Info("order_created", map[string]any{"order_id": "abc"})
	lg.With("req-1").Error("db_failed", errors.New("boom"), nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "order-api", first["service"])
	assert.Equal(t, "order_created", first["action"])
	assert.Equal(t, "abc", first["order_id"])
	assert.Equal(t, "", first["request_id"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "req-1", second["request_id"])
	errObj, ok := second["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boom", errObj["msg"])
	assert.NotEmpty(t, errObj["stack"])
}

func TestNamedSharesWriter(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWithWriter("root", &buf).Named("feed")
	lg.Debug("subscribed", nil)
	assert.Contains(t, buf.String(), `"service":"feed"`)
}
