package gelf

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"Seed: admin created", LevelInfo},
		{"Warning: GELF init failed", LevelWarning},
		{"PANIC: runtime error", LevelError},
		{"Fatal: listen failed", LevelError},
		{"internal error: boom", LevelError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.line), tt.line)
	}
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "GET /apply 200 3ms", StripPrefix("2026/02/19 18:43:52 GET /apply 200 3ms"))
	assert.Equal(t, "short", StripPrefix("short"))
}

func TestWriteSendsOneMessagePerLine(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	w, err := New(pc.LocalAddr().String(), "intake")
	require.NoError(t, err)
	defer w.Close()

	line := "2026/02/19 18:43:52 Warning: seed skipped\n"
	n, err := w.Write([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, len(line), n)

	buf := make([]byte, 2048)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err = pc.ReadFrom(buf)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(buf[:n], &msg))
	assert.Equal(t, "1.1", msg.Version)
	assert.Equal(t, "Warning: seed skipped", msg.ShortMessage)
	assert.Equal(t, LevelWarning, msg.Level)
	assert.Equal(t, "intake", msg.Service)
}
