package log

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "info"},
		{in: "debug", want: "debug"},
		{in: "WARNING", want: "warn"},
		{in: "trace", want: "trace"},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := SetLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, GetLogLevel())
		})
	}
	require.NoError(t, SetLogLevel("info"))
}

func TestTraceOnlyWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetFormat("text")

	require.NoError(t, SetLogLevel("info"))
	buf.Reset()
	LogTraceWithFields("handshake", "hidden", nil)
	assert.Empty(t, buf.String())

	require.NoError(t, SetLogLevel("trace"))
	buf.Reset()
	LogTraceWithFields("handshake", "visible", map[string]any{"phase": "idle"})
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "component=handshake")

	require.NoError(t, SetLogLevel("info"))
}

func TestSetFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetFormat("text")

	SetFormat("json")
	LogInfoWithFields("server", "listening", map[string]any{"addr": ":8080"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "listening", entry["msg"])
	assert.Equal(t, "server", entry["component"])
	assert.Equal(t, ":8080", entry["addr"])
	assert.Contains(t, entry, "timestamp")
}
