package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/cellsync/internal/core/protocol"
)

// Config is the server configuration file. Zero-valued fields keep their
// defaults when loaded with LoadConfig.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	QUIC     QUICConfig     `yaml:"quic"`
	Protocol ProtocolConfig `yaml:"protocol"`
	World    WorldConfig    `yaml:"world"`
	Audit    AuditConfig    `yaml:"audit"`
	LogLevel string         `yaml:"log_level"`
}

// HTTPConfig covers the websocket endpoint and the status endpoints.
type HTTPConfig struct {
	// Addr empty disables the HTTP listener.
	Addr           string        `yaml:"addr"`
	WebSocketPath  string        `yaml:"websocket_path"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type QUICConfig struct {
	// Addr empty disables QUIC.
	Addr            string        `yaml:"addr"`
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
	MaxIdleTimeout  time.Duration `yaml:"max_idle_timeout"`
	KeepAlivePeriod time.Duration `yaml:"keep_alive_period"`
}

type ProtocolConfig struct {
	Codec             string        `yaml:"codec"`
	MaxMessageSize    int           `yaml:"max_message_size"`
	OutboundQueueSize int           `yaml:"outbound_queue_size"`
	RateLimit         int           `yaml:"rate_limit"`
	RateWindow        time.Duration `yaml:"rate_window"`
	// MaxNeighborhoodCells caps a grid shift's cell list. 0 disables the cap.
	MaxNeighborhoodCells int `yaml:"max_neighborhood_cells"`
}

type WorldConfig struct {
	InboxSize int `yaml:"inbox_size"`
}

type AuditConfig struct {
	// Dir empty disables the audit trail.
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:          "127.0.0.1:8080",
			WebSocketPath: "/ws",
			ReadTimeout:   60 * time.Second,
			WriteTimeout:  10 * time.Second,
			PingInterval:  25 * time.Second,
		},
		QUIC: QUICConfig{
			MaxIdleTimeout:  30 * time.Second,
			KeepAlivePeriod: 10 * time.Second,
		},
		Protocol: ProtocolConfig{
			Codec:             protocol.CodecMsgpack,
			MaxMessageSize:    64 * 1024,
			OutboundQueueSize: 256,
			RateLimit:         120,
			RateWindow:        time.Second,

			MaxNeighborhoodCells: protocol.DefaultMaxNeighborhoodCells,
		},
		World:    WorldConfig{InboxSize: 4096},
		Audit:    AuditConfig{Prefix: "audit"},
		LogLevel: "info",
	}
}

// LoadConfig overlays the YAML file at path on the defaults and validates
// the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultServerConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" && c.QUIC.Addr == "" {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoListeners)
	}
	if _, err := protocol.CodecByName(c.Protocol.Codec); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Protocol.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: protocol.max_message_size must be positive", ErrInvalidConfig)
	}
	if c.Protocol.OutboundQueueSize <= 0 {
		return fmt.Errorf("%w: protocol.outbound_queue_size must be positive", ErrInvalidConfig)
	}
	if c.Protocol.RateLimit > 0 && c.Protocol.RateWindow <= 0 {
		return fmt.Errorf("%w: protocol.rate_window must be positive when rate_limit is set", ErrInvalidConfig)
	}
	if c.Protocol.MaxNeighborhoodCells < 0 {
		return fmt.Errorf("%w: protocol.max_neighborhood_cells must not be negative", ErrInvalidConfig)
	}
	if c.World.InboxSize <= 0 {
		return fmt.Errorf("%w: world.inbox_size must be positive", ErrInvalidConfig)
	}
	if c.HTTP.Addr != "" && (c.HTTP.WebSocketPath == "" || c.HTTP.WebSocketPath[0] != '/') {
		return fmt.Errorf("%w: http.websocket_path must start with /", ErrInvalidConfig)
	}
	if (c.QUIC.CertFile == "") != (c.QUIC.KeyFile == "") {
		return fmt.Errorf("%w: quic.cert_file and quic.key_file must be set together", ErrInvalidConfig)
	}
	return nil
}
