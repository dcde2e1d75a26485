package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestNew_WritesJSONWithFields(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&buf, zerolog.DebugLevel)
	logger.WithField("plugin", "sqs").WithFields(map[string]any{"queue_name": "orders"}).Infof("sent %d messages", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "sent 3 messages", lines[0]["message"])
	assert.Equal(t, "sqs", lines[0]["plugin"])
	assert.Equal(t, "orders", lines[0]["queue_name"])
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&buf, zerolog.WarnLevel)
	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Errorf("also %s", "shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "also shown", lines[1]["message"])
}

func TestWithField_DoesNotModifyParent(t *testing.T) {
	var buf bytes.Buffer

	parent := New(&buf, zerolog.InfoLevel)
	_ = parent.WithField("child", true)
	parent.Info("parent")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	_, ok := lines[0]["child"]
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"", zerolog.InfoLevel, false},
		{"debug", zerolog.DebugLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"nonsense", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.WithField("a", 1).Error("discarded")
	assert.Equal(t, zerolog.Disabled, logger.Zerolog().GetLevel())
}

func TestNew_NonTerminalFileGetsJSON(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log.json"))
	require.NoError(t, err)

	defer f.Close()

	require.False(t, isTerminal(f))

	New(f, zerolog.InfoLevel).Info("to a file")

	raw, err := os.ReadFile(f.Name())
	require.NoError(t, err)

	lines := decodeLines(t, bytes.NewBuffer(raw))
	require.Len(t, lines, 1)
	assert.Equal(t, "to a file", lines[0]["message"])
}
