package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/pkg/websocket"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"listen": {"addr": "127.0.0.1:9000"},
		"control": {"socketPath": "/tmp/chatd.sock"},
		"limits": {"maxPayload": 4096, "queueSize": 64, "handshakeTimeoutMs": 1500},
		"history": {"enabled": true, "database": "chat", "user": "relay", "recentLimit": 20}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", loaded.ListenAddr)
	assert.Equal(t, "/tmp/chatd.sock", loaded.ControlSocket)
	assert.Equal(t, 4096, loaded.Limits.MaxPayload)
	assert.Equal(t, 64, loaded.Limits.QueueSize)
	assert.Equal(t, 1500*time.Millisecond, loaded.Limits.HandshakeTimeout)
	assert.True(t, loaded.History.Enabled)
	assert.Equal(t, "chat", loaded.History.Database)
	assert.Equal(t, 20, loaded.History.RecentLimit)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)
	assert.Equal(t, websocket.MaxPayload, loaded.Limits.MaxPayload)
}

func TestLoadRejectsOversizedPayloadLimit(t *testing.T) {
	path := writeConfig(t, `{"limits": {"maxPayload": 65536}}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsZeroQueue(t *testing.T) {
	path := writeConfig(t, `{"limits": {"queueSize": 0}}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsHistoryWithoutDatabase(t *testing.T) {
	path := writeConfig(t, `{"history": {"enabled": true}}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"listen":`)

	_, err := Load(path)
	require.Error(t, err)
}
