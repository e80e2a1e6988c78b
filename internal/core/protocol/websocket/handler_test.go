package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/cellsync/internal/core/models"
	"github.com/zeusync/cellsync/internal/core/observability/log"
	"github.com/zeusync/cellsync/internal/core/protocol"
)

// echoGateway acknowledges every command with an AssignCharacterResponse
// carrying the connection id.
type echoGateway struct {
	hub *protocol.Hub

	mu    sync.Mutex
	names map[models.ConnectionID]string
	left  []models.ConnectionID
}

func (g *echoGateway) Connect(_ context.Context, conn models.ConnectionID, username string) (models.EntityID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.names[conn] = username
	return models.EntityID(conn), nil
}

func (g *echoGateway) Disconnect(_ context.Context, conn models.ConnectionID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.left = append(g.left, conn)
	return nil
}

func (g *echoGateway) Submit(cmd protocol.Command) error {
	return g.hub.Send(cmd.Connection, &protocol.AssignCharacterResponse{ServerID: models.EntityID(cmd.Connection)})
}

func (g *echoGateway) leftCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.left)
}

func setup(t *testing.T, codec protocol.Codec) (*httptest.Server, *echoGateway, *Handler) {
	t.Helper()
	hub := protocol.NewHub(protocol.NewAdapter(codec, 0))
	gw := &echoGateway{hub: hub, names: make(map[models.ConnectionID]string)}
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	h := NewHandler(cfg, protocol.NewIngress(hub, gw, nil, log.NewNop()), log.NewNop())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, gw, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?name=tester"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return c
}

func roundTrip(t *testing.T, c *websocket.Conn, codec protocol.Codec, msg protocol.Message) protocol.Message {
	t.Helper()
	frame, err := codec.Encode(msg)
	require.NoError(t, err)
	frameType := websocket.TextMessage
	if codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	require.NoError(t, c.WriteMessage(frameType, frame))

	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	gotType, data, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, frameType, gotType)
	reply, err := codec.Decode(data)
	require.NoError(t, err)
	return reply
}

func TestHandlerRoundTrip(t *testing.T) {
	codec := protocol.MsgpackCodec{}
	srv, gw, h := setup(t, codec)
	c := dial(t, srv)

	reply := roundTrip(t, c, codec, &protocol.EnterInteriorCellRequest{CellID: 4})
	ack, ok := reply.(*protocol.AssignCharacterResponse)
	require.True(t, ok)
	assert.NotZero(t, ack.ServerID)

	gw.mu.Lock()
	assert.Equal(t, "tester", gw.names[models.ConnectionID(ack.ServerID)])
	gw.mu.Unlock()
	assert.Equal(t, 1, h.Metrics().Active)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return gw.leftCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return h.Metrics().Active == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerTextFramesWithJSONCodec(t *testing.T) {
	codec := protocol.JSONCodec{}
	srv, _, _ := setup(t, codec)
	c := dial(t, srv)
	defer c.Close()

	reply := roundTrip(t, c, codec, &protocol.EnterInteriorCellRequest{CellID: 4})
	assert.IsType(t, &protocol.AssignCharacterResponse{}, reply)
}

func TestHandlerAnswersInvalidFrames(t *testing.T) {
	codec := protocol.MsgpackCodec{}
	srv, _, _ := setup(t, codec)
	c := dial(t, srv)
	defer c.Close()

	reply := roundTrip(t, c, codec, &protocol.EnterInteriorCellRequest{})
	notice, ok := reply.(*protocol.ErrorNotice)
	require.True(t, ok)
	assert.Contains(t, notice.Reason, protocol.ErrInvalidMessage.Error())
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(Config{AllowedOrigins: []string{"https://game.example"}}, nil, log.NewNop())
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(r))
	r.Header.Set("Origin", "https://game.example")
	assert.True(t, h.checkOrigin(r))
}
