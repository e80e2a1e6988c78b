package server_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/cellsync/internal/core/events"
	"github.com/zeusync/cellsync/internal/injector"
	"github.com/zeusync/cellsync/internal/server"
)

func testConfig(t *testing.T) server.Config {
	t.Helper()
	cfg := server.DefaultServerConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.PingInterval = 0
	cfg.Audit.Dir = t.TempDir()
	cfg.LogLevel = "silent"
	return cfg
}

// start runs the server until the test ends and returns its base URL.
func start(t *testing.T, cfg server.Config) (*server.Server, string) {
	t.Helper()
	srv, err := injector.InitializeServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	addrCtx, addrCancel := context.WithTimeout(ctx, 2*time.Second)
	defer addrCancel()
	addr, err := srv.HTTPAddr(addrCtx)
	require.NoError(t, err)
	return srv, "http://" + addr.String()
}

func TestHealthAndStats(t *testing.T) {
	srv, base := start(t, testConfig(t))

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats server.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.True(t, stats.World.Running)
	assert.Zero(t, stats.World.Players)
	assert.Nil(t, stats.QUIC)
	assert.Equal(t, stats.World.Running, srv.Stats().World.Running)
}

func TestRunFailsOnBusyAddress(t *testing.T) {
	_, base := start(t, testConfig(t))

	cfg := testConfig(t)
	cfg.HTTP.Addr = base[len("http://"):]
	cfg.Audit.Dir = ""
	srv, err := injector.InitializeServer(cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Run(context.Background()), server.ErrListenerFailed)
}

func TestAuditTrailRecordsJoins(t *testing.T) {
	cfg := testConfig(t)
	srv, err := injector.InitializeServer(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	addrCtx, addrCancel := context.WithTimeout(ctx, 2*time.Second)
	defer addrCancel()
	addr, err := srv.HTTPAddr(addrCtx)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr.String()+cfg.HTTP.WebSocketPath+"?name=auditor", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Stats().World.Players == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return srv.Stats().World.Players == 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	files, err := filepath.Glob(filepath.Join(cfg.Audit.Dir, "*.jsonl.zst"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var types []string
	for _, name := range files {
		f, err := os.Open(name)
		require.NoError(t, err)
		dec, err := zstd.NewReader(f)
		require.NoError(t, err)
		scanner := bufio.NewScanner(dec)
		for scanner.Scan() {
			var rec struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
			types = append(types, rec.Type)
		}
		dec.Close()
		_ = f.Close()
	}
	assert.Equal(t, []string{events.TypePlayerJoined, events.TypePlayerLeft}, types)
}
