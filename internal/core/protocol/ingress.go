package protocol

import (
	"context"
	"errors"

	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
)

// Gateway is the world as seen from a transport.
type Gateway interface {
	Connect(ctx context.Context, conn models.ConnectionID, username string) (models.EntityID, error)
	Disconnect(ctx context.Context, conn models.ConnectionID) error
	Submit(cmd Command) error
}

// Ingress is the receive path shared by every transport: it registers
// peers, decodes frames, applies rate limits and forwards commands to the
// gateway. Rejected frames are answered with an ErrorNotice.
type Ingress struct {
	hub     *Hub
	gateway Gateway
	limiter *RateLimiter
	logger  log.Log
}

func NewIngress(hub *Hub, gateway Gateway, limiter *RateLimiter, logger log.Log) *Ingress {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Ingress{
		hub:     hub,
		gateway: gateway,
		limiter: limiter,
		logger:  logger.With(log.String("component", "ingress")),
	}
}

// Codec is the codec frames are encoded with.
func (in *Ingress) Codec() Codec { return in.hub.Adapter().Codec() }

// Open attaches peer and creates its player.
func (in *Ingress) Open(ctx context.Context, peer Peer, username string) (models.ConnectionID, error) {
	conn := in.hub.Attach(peer)
	if _, err := in.gateway.Connect(ctx, conn, username); err != nil {
		// After a timeout the gateway may still create the player. Other
		// failures, such as a duplicate, must not touch an existing one.
		if ctx.Err() != nil {
			if derr := in.gateway.Disconnect(context.WithoutCancel(ctx), conn); derr != nil {
				in.logger.Warn("Failed to schedule disconnect",
					log.Hex("connection_id", uint64(conn)), log.Error(derr))
			}
		}
		in.hub.Detach(conn)
		return 0, err
	}
	return conn, nil
}

// Receive handles one inbound frame.
func (in *Ingress) Receive(conn models.ConnectionID, raw []byte) {
	if !in.limiter.Allow(conn) {
		in.reject(conn, "", errRateLimited)
		return
	}

	cmd, err := in.hub.Adapter().Decode(conn, raw)
	if err != nil {
		in.reject(conn, "", err)
		return
	}
	if err = in.gateway.Submit(cmd); err != nil {
		in.reject(conn, cmd.Message.Type(), err)
	}
}

// Close removes the player and forgets the peer.
func (in *Ingress) Close(ctx context.Context, conn models.ConnectionID) {
	if err := in.gateway.Disconnect(ctx, conn); err != nil {
		in.logger.Warn("Failed to schedule disconnect",
			log.Hex("connection_id", uint64(conn)), log.Error(err))
	}
	in.hub.Detach(conn)
	in.limiter.Forget(conn)
}

var errRateLimited = errors.New("rate limit exceeded")

func (in *Ingress) reject(conn models.ConnectionID, requestType string, err error) {
	in.logger.Warn("Rejected frame",
		log.Hex("connection_id", uint64(conn)),
		log.String("request", requestType),
		log.Error(err))
	_ = in.hub.Send(conn, &ErrorNotice{RequestType: requestType, Reason: err.Error()})
}
