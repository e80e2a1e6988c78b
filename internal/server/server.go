// Package server assembles the world, the transports and the HTTP status
// endpoints into one process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/cellsync/internal/core/audit"
	"github.com/zeusync/cellsync/internal/core/events/bus"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
	"github.com/zeusync/cellsync/internal/core/protocol/quic"
	"github.com/zeusync/cellsync/internal/core/protocol/websocket"
	"github.com/zeusync/cellsync/internal/core/world"
)

// Server runs the world loop and every configured listener.
type Server struct {
	config Config
	world  *world.World
	hub    *protocol.Hub
	bus    bus.EventBus
	ws     *websocket.Handler
	quic   *quic.Server
	audit  *audit.Trail
	logger log.Log

	mu       sync.Mutex
	httpAddr net.Addr
	ready    chan struct{}
}

// NewServer wires the server. quicServer and trail may be nil when
// disabled.
func NewServer(config Config, w *world.World, hub *protocol.Hub, b bus.EventBus, ws *websocket.Handler, quicServer *quic.Server, trail *audit.Trail, logger log.Log) *Server {
	s := &Server{
		config: config,
		world:  w,
		hub:    hub,
		bus:    b,
		ws:     ws,
		quic:   quicServer,
		audit:  trail,
		logger: logger.With(log.String("component", "server")),
		ready:  make(chan struct{}),
	}
	b.AddObserver(&busObserver{logger: s.logger})

	s.logger.Info("Server created",
		log.String("http_addr", config.HTTP.Addr),
		log.String("quic_addr", config.QUIC.Addr),
		log.String("codec", config.Protocol.Codec))
	return s
}

// Run blocks until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting server")

	var ln net.Listener
	if s.config.HTTP.Addr != "" {
		var err error
		if ln, err = net.Listen("tcp", s.config.HTTP.Addr); err != nil {
			close(s.ready)
			return errors.Join(ErrListenerFailed, err)
		}
		s.mu.Lock()
		s.httpAddr = ln.Addr()
		s.mu.Unlock()
	}
	close(s.ready)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.world.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if ln != nil {
		srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			s.logger.Info("HTTP listening", log.String("addr", ln.Addr().String()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if s.quic != nil {
		g.Go(func() error { return s.quic.Serve(ctx) })
	}

	err := g.Wait()
	if s.audit != nil {
		if cerr := s.audit.Close(); cerr != nil {
			s.logger.Warn("Failed to close audit trail", log.Error(cerr))
		}
	}
	s.logger.Info("Server stopped")
	return err
}

// HTTPAddr returns the bound HTTP address once Run is listening.
func (s *Server) HTTPAddr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpAddr == nil {
		return nil, ErrServerNotListen
	}
	return s.httpAddr, nil
}

// Handler serves the websocket endpoint, /healthz and /stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.HTTP.WebSocketPath, s.ws)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if !s.world.Stats().Running {
		http.Error(w, "world not running", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// Stats is the /stats document.
type Stats struct {
	World     world.Stats         `json:"world"`
	Hub       protocol.HubStats   `json:"hub"`
	Bus       bus.EventBusMetrics `json:"bus"`
	WebSocket websocket.Metrics   `json:"websocket"`
	QUIC      *quic.Metrics       `json:"quic,omitempty"`
}

func (s *Server) Stats() Stats {
	st := Stats{
		World:     s.world.Stats(),
		Hub:       s.hub.Stats(),
		Bus:       s.bus.GetMetrics(),
		WebSocket: s.ws.Metrics(),
	}
	if s.quic != nil {
		m := s.quic.Metrics()
		st.QUIC = &m
	}
	return st
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
		s.logger.Warn("Failed to encode stats", log.Error(err))
	}
}

// busObserver logs failed deliveries. Registering it also turns on the bus
// counters reported by /stats.
type busObserver struct {
	logger log.Log
}

func (o *busObserver) OnPublish(string, bus.Event) {}

func (o *busObserver) OnDelivered(eventType string, handlers int, err error, durationMicros int64) {
	if err != nil {
		o.logger.Debug("Event delivery failed",
			log.String("event", eventType),
			log.Int("handlers", handlers),
			log.Int64("duration_us", durationMicros),
			log.Error(err))
	}
}
