package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/cellsync/internal/core/protocol"
)

func TestDefaultServerConfigIsValid(t *testing.T) {
	cfg := DefaultServerConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/ws", cfg.HTTP.WebSocketPath)
	assert.Equal(t, protocol.CodecMsgpack, cfg.Protocol.Codec)
	assert.Empty(t, cfg.QUIC.Addr)
	assert.Empty(t, cfg.Audit.Dir)
	assert.Equal(t, protocol.DefaultMaxNeighborhoodCells, cfg.Protocol.MaxNeighborhoodCells)
}

func TestLoadConfigOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: 0.0.0.0:9000
  ping_interval: 5s
quic:
  addr: 0.0.0.0:9001
protocol:
  codec: json
  rate_limit: 10
world:
  inbox_size: 16
log_level: debug
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.PingInterval)
	assert.Equal(t, "/ws", cfg.HTTP.WebSocketPath)
	assert.Equal(t, "0.0.0.0:9001", cfg.QUIC.Addr)
	assert.Equal(t, protocol.CodecJSON, cfg.Protocol.Codec)
	assert.Equal(t, 10, cfg.Protocol.RateLimit)
	assert.Equal(t, time.Second, cfg.Protocol.RateWindow)
	assert.Equal(t, 16, cfg.World.InboxSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("protocol:\n  codec: xml\n"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listeners", func(c *Config) { c.HTTP.Addr = "" }},
		{"unknown codec", func(c *Config) { c.Protocol.Codec = "xml" }},
		{"message size", func(c *Config) { c.Protocol.MaxMessageSize = 0 }},
		{"queue size", func(c *Config) { c.Protocol.OutboundQueueSize = -1 }},
		{"rate window", func(c *Config) { c.Protocol.RateWindow = 0 }},
		{"inbox", func(c *Config) { c.World.InboxSize = 0 }},
		{"neighborhood", func(c *Config) { c.Protocol.MaxNeighborhoodCells = -1 }},
		{"path", func(c *Config) { c.HTTP.WebSocketPath = "ws" }},
		{"half tls pair", func(c *Config) { c.QUIC.CertFile = "cert.pem" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("no listeners is reported", func(t *testing.T) {
		cfg := DefaultServerConfig()
		cfg.HTTP.Addr = ""
		assert.ErrorIs(t, cfg.Validate(), ErrNoListeners)
	})
}
