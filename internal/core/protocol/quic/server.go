// Package quic serves the cell protocol over QUIC. Each connection uses one
// bidirectional stream opened by the client; the first frame on it carries
// the username.
package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

type Config struct {
	Addr            string
	MaxIdleTimeout  time.Duration
	KeepAlivePeriod time.Duration
	QueueSize       int
	MaxMessageSize  int
	WriteTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:            ":7778",
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
		QueueSize:       256,
		MaxMessageSize:  64 * 1024,
		WriteTimeout:    10 * time.Second,
	}
}

// Application error codes sent when the server closes a connection.
const (
	codeNormal   quic.ApplicationErrorCode = 0
	codeProtocol quic.ApplicationErrorCode = 1
	codeRejected quic.ApplicationErrorCode = 2
)

type Server struct {
	config  Config
	tls     *tls.Config
	ingress *protocol.Ingress
	logger  log.Log

	mu       sync.Mutex
	listener *quic.Listener
	ready    chan struct{}

	active   atomic.Int64
	accepted atomic.Int64
}

func NewServer(config Config, tlsConfig *tls.Config, ingress *protocol.Ingress, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	return &Server{
		config:  config,
		tls:     tlsConfig,
		ingress: ingress,
		logger:  logger.With(log.String("protocol", "quic")),
		ready:   make(chan struct{}),
	}
}

// Serve listens and accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := quic.ListenAddr(s.config.Addr, s.tls, &quic.Config{
		MaxIdleTimeout:  s.config.MaxIdleTimeout,
		KeepAlivePeriod: s.config.KeepAlivePeriod,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start QUIC listener")
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("QUIC listener started", log.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		qc, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("QUIC listener stopped")
				return nil
			}
			return errors.Wrap(err, "failed to accept QUIC connection")
		}
		s.accepted.Add(1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(ctx, qc)
		}()
	}
}

// Addr returns the bound address once Serve is listening.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr(), nil
}

func (s *Server) handle(ctx context.Context, qc *quic.Conn) {
	logger := s.logger.With(log.String("remote_addr", qc.RemoteAddr().String()))
	stop := context.AfterFunc(ctx, func() {
		_ = qc.CloseWithError(codeNormal, "server shutting down")
	})
	defer stop()

	stream, err := qc.AcceptStream(ctx)
	if err != nil {
		logger.Debug("Connection closed before opening a stream", log.Error(err))
		_ = qc.CloseWithError(codeProtocol, "no stream")
		return
	}
	hello, err := readFrame(stream, protocol.MaxNameLength)
	if err != nil {
		logger.Warn("Invalid hello frame", log.Error(err))
		_ = qc.CloseWithError(codeProtocol, "invalid hello")
		return
	}

	p := newPeer(qc, stream, s.config)
	openCtx, cancelOpen := context.WithTimeout(ctx, 5*time.Second)
	conn, err := s.ingress.Open(openCtx, p, string(hello))
	cancelOpen()
	if err != nil {
		logger.Error("Failed to register connection", log.Error(err))
		_ = qc.CloseWithError(codeRejected, "registration failed")
		return
	}
	s.active.Add(1)
	defer s.active.Add(-1)

	logger = logger.With(log.String("client_id", p.id), log.Hex("connection_id", uint64(conn)))
	logger.Info("QUIC client connected")

	writerDone := make(chan error, 1)
	go func() { writerDone <- p.writeLoop() }()

	for {
		frame, err := readFrame(stream, s.config.MaxMessageSize)
		if err != nil {
			if errors.Is(err, ErrFrameTooLarge) {
				logger.Warn("Frame too large", log.Error(err))
			}
			break
		}
		s.ingress.Receive(conn, frame)
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	s.ingress.Close(closeCtx, conn)
	cancel()
	p.close(codeNormal, "connection closed")
	if err = <-writerDone; err != nil {
		logger.Debug("Writer stopped", log.Error(err))
	}
	logger.Info("QUIC client disconnected")
}

type Metrics struct {
	Active   int64 `json:"active"`
	Accepted int64 `json:"accepted"`
}

func (s *Server) Metrics() Metrics {
	return Metrics{Active: s.active.Load(), Accepted: s.accepted.Load()}
}
