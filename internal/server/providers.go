package server

import (
	"github.com/google/wire"

	"github.com/zeusync/cellsync/internal/core/audit"
	"github.com/zeusync/cellsync/internal/core/cells"
	"github.com/zeusync/cellsync/internal/core/character"
	"github.com/zeusync/cellsync/internal/core/ecs"
	"github.com/zeusync/cellsync/internal/core/events/bus"
	"github.com/zeusync/cellsync/internal/core/interest"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
	"github.com/zeusync/cellsync/internal/core/protocol/quic"
	"github.com/zeusync/cellsync/internal/core/protocol/websocket"
	"github.com/zeusync/cellsync/internal/core/session"
	"github.com/zeusync/cellsync/internal/core/world"
)

// ProviderSet builds a Server from a Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ecs.NewRegistry,
	bus.New,
	session.NewRegistry,
	ProvideAdapter,
	protocol.NewHub,
	ProvideRateLimiter,
	protocol.NewIngress,
	character.NewSerializer,
	interest.NewProtocol,
	wire.Struct(new(cells.Deps), "*"),
	cells.NewService,
	wire.Struct(new(character.Deps), "*"),
	character.NewService,
	ProvideWorldConfig,
	wire.Struct(new(world.Deps), "*"),
	world.New,
	ProvideWebSocketHandler,
	ProvideQUICServer,
	ProvideAuditTrail,
	NewServer,

	wire.Bind(new(log.Log), new(*log.Logger)),
	wire.Bind(new(protocol.Gateway), new(*world.World)),
	wire.Bind(new(interest.Sender), new(*protocol.Hub)),
	wire.Bind(new(interest.CharacterSerializer), new(character.Serializer)),
)

func ProvideLogger(cfg Config) *log.Logger {
	return log.New(log.ParseLevel(cfg.LogLevel))
}

func ProvideAdapter(cfg Config) (*protocol.Adapter, error) {
	codec, err := protocol.CodecByName(cfg.Protocol.Codec)
	if err != nil {
		return nil, err
	}
	return protocol.NewAdapter(codec, cfg.Protocol.MaxMessageSize).
		WithNeighborhoodLimit(cfg.Protocol.MaxNeighborhoodCells), nil
}

func ProvideRateLimiter(cfg Config) *protocol.RateLimiter {
	return protocol.NewRateLimiter(cfg.Protocol.RateLimit, cfg.Protocol.RateWindow)
}

func ProvideWorldConfig(cfg Config) world.Config {
	return world.Config{InboxSize: cfg.World.InboxSize}
}

func ProvideWebSocketHandler(cfg Config, ingress *protocol.Ingress, logger log.Log) *websocket.Handler {
	return websocket.NewHandler(websocket.Config{
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		PingInterval:   cfg.HTTP.PingInterval,
		QueueSize:      cfg.Protocol.OutboundQueueSize,
		MaxMessageSize: int64(cfg.Protocol.MaxMessageSize),
		BufferSize:     4096,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, ingress, logger)
}

// ProvideQUICServer returns nil when QUIC is disabled.
func ProvideQUICServer(cfg Config, ingress *protocol.Ingress, logger log.Log) (*quic.Server, error) {
	if cfg.QUIC.Addr == "" {
		return nil, nil
	}
	tlsConfig, err := quic.ServerTLSConfig(cfg.QUIC.CertFile, cfg.QUIC.KeyFile)
	if err != nil {
		return nil, err
	}
	return quic.NewServer(quic.Config{
		Addr:            cfg.QUIC.Addr,
		MaxIdleTimeout:  cfg.QUIC.MaxIdleTimeout,
		KeepAlivePeriod: cfg.QUIC.KeepAlivePeriod,
		QueueSize:       cfg.Protocol.OutboundQueueSize,
		MaxMessageSize:  cfg.Protocol.MaxMessageSize,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
	}, tlsConfig, ingress, logger), nil
}

// ProvideAuditTrail returns nil when no audit directory is configured. The
// trail is closed by Server.Run.
func ProvideAuditTrail(cfg Config, b bus.EventBus, logger log.Log) (*audit.Trail, error) {
	if cfg.Audit.Dir == "" {
		return nil, nil
	}
	return audit.Attach(b, audit.NewWriter(cfg.Audit.Dir, cfg.Audit.Prefix), logger)
}
