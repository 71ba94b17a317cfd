package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/config"
	"github.com/iudanet/opsync/internal/server/handlers"
	"github.com/iudanet/opsync/pkg/api"
)

func testConfig() *config.Server {
	return &config.Server{
		Addr: "127.0.0.1:0",
		DB:   ":memory:",
		JWT: config.JWTConfig{
			Secret: "0123456789abcdef0123456789abcdef",
			Issuer: "opsync",
			TTL:    time.Hour,
		},
		Sync: config.ServerSyncConfig{
			MaxBatchSize:     100,
			DefaultPullLimit: 100,
			MaxPullLimit:     100,
		},
		RateLimit: config.RateLimitConfig{Requests: 1000, Window: time.Minute},
		Realtime:  config.RealtimeConfig{Enabled: true},
		Log:       config.LogConfig{Level: "error"},
	}
}

func setupServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	cfg := testConfig()
	s, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Close()
	})

	token, _, err := handlers.GenerateAccessToken(handlers.JWTConfig{
		Secret:         []byte(cfg.JWT.Secret),
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: cfg.JWT.TTL,
	}, "user-1")
	require.NoError(t, err)

	return ts, token
}

func TestNew_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = ""

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
	assert.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	ts, token := setupServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		wantCode int
	}{
		{name: "health is public", method: http.MethodGet, path: "/api/v1/health", wantCode: http.StatusOK},
		{name: "pull requires token", method: http.MethodGet, path: "/api/v1/sync/pull", wantCode: http.StatusUnauthorized},
		{name: "status requires token", method: http.MethodGet, path: "/api/v1/sync/status", wantCode: http.StatusUnauthorized},
		{name: "pull with token", method: http.MethodGet, path: "/api/v1/sync/pull?since=0", token: token, wantCode: http.StatusOK},
		{name: "status with token", method: http.MethodGet, path: "/api/v1/sync/status", token: token, wantCode: http.StatusOK},
		{name: "push wrong method", method: http.MethodGet, path: "/api/v1/sync/push", token: token, wantCode: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/api/v1/unknown", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, ts.URL+tt.path, nil)
			require.NoError(t, err)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}

func TestServer_PushNotifiesSubscribers(t *testing.T) {
	ts, token := setupServer(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sync/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	// подписка регистрируется асинхронно после upgrade
	time.Sleep(50 * time.Millisecond)

	body, err := json.Marshal(api.PushRequest{
		DeviceID: "device-a",
		Operations: []api.Operation{{
			ID:              "op-1",
			Type:            "CREATE",
			EntityKind:      "project",
			EntityID:        "project:P1",
			Payload:         json.RawMessage(`{"name":"Alpha"}`),
			ClientTimestamp: time.Now().UnixMilli(),
		}},
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/sync/push", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	pushResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer pushResp.Body.Close()
	require.Equal(t, http.StatusOK, pushResp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var notice api.Notice
	require.NoError(t, conn.ReadJSON(&notice))

	assert.Equal(t, api.NoticeTypeOps, notice.Type)
	assert.Equal(t, "device-a", notice.DeviceID)
	assert.Equal(t, int64(1), notice.ServerSeq)
}

func TestServer_ServeShutdown(t *testing.T) {
	cfg := testConfig()
	s, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "test")
	require.NoError(t, err)
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
