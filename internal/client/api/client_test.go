package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", "token", 0)

	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)

	client = NewClient("http://localhost:8080", "", 3*time.Second)
	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
}

func TestClient_Push(t *testing.T) {
	var body []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sync/push", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var err error
		body, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		_ = json.NewEncoder(w).Encode(api.PushResponse{
			Success: true,
			Data: api.PushData{
				Assigned:  map[string]int64{"o1": 101, "o2": 102},
				AckOps:    []string{"o1", "o2"},
				Failed:    []api.FailedOp{},
				ServerSeq: 102,
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)

	data, err := client.Push(context.Background(), api.PushRequest{
		DeviceID: "device-a",
		Operations: []api.Operation{
			{
				ID:              "o1",
				DeviceID:        "device-a",
				UserID:          "user-1",
				Type:            "CREATE",
				EntityKind:      "project",
				EntityID:        "project:P1",
				Payload:         json.RawMessage(`{"name":"Alpha","status":"draft"}`),
				ClientTimestamp: 1700000000000,
			},
			{
				ID:              "o2",
				DeviceID:        "device-a",
				UserID:          "user-1",
				Type:            "DELETE",
				EntityKind:      "measurement",
				EntityID:        "measurement:M1",
				ClientTimestamp: 1700000000001,
				BaseSeq:         50,
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"o1", "o2"}, data.AckOps)
	assert.Equal(t, int64(102), data.Assigned["o2"])
	assert.Equal(t, int64(102), data.ServerSeq)

	var pretty bytes.Buffer
	require.NoError(t, json.Indent(&pretty, body, "", "  "))

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "push_request", pretty.Bytes())
}

func TestClient_Pull(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sync/pull", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("since"))
		assert.Equal(t, "device-b", r.URL.Query().Get("deviceId"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(`{"success":true,"data":{"operations":[` +
			`{"id":"o1","deviceId":"device-a","userId":"user-1","type":"CREATE","entityKind":"project",` +
			`"entityId":"project:P1","payload":{"name":"Alpha"},"clientTimestamp":1700000000000,` +
			`"serverSeq":101,"receivedAt":1700000000500}],` +
			`"serverSeq":101,"serverTime":1700000001000,"hasMore":false}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", time.Second)

	data, err := client.Pull(context.Background(), 50, "device-b", 100)
	require.NoError(t, err)

	require.Len(t, data.Operations, 1)
	assert.Equal(t, "o1", data.Operations[0].ID)
	assert.Equal(t, int64(101), data.Operations[0].ServerSeq)
	assert.JSONEq(t, `{"name":"Alpha"}`, string(data.Operations[0].Payload))
	assert.Equal(t, int64(101), data.ServerSeq)
	assert.Equal(t, int64(1700000001000), data.ServerTime)
	assert.False(t, data.HasMore)
}

func TestClient_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/status", r.URL.Path)
		assert.Equal(t, "device-a", r.URL.Query().Get("deviceId"))
		_ = json.NewEncoder(w).Encode(api.StatusResponse{TotalOperations: 3, LatestServerSeq: 7})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, "t", time.Second).Status(context.Background(), "device-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalOperations)
	assert.Equal(t, int64(7), resp.LatestServerSeq)
}

func TestClient_Health(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: `{"status":"ok"}`},
		{name: "unavailable", status: http.StatusServiceUnavailable, body: `{"status":"unavailable"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL, "", time.Second).Health(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, IsTransient(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantAuth      bool
		wantTransient bool
		wantTooLarge  bool
		wantCode      string
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"success":false,"error":"unauthorized: invalid token"}`,
			wantAuth: true,
			wantCode: "unauthorized: invalid token",
		},
		{
			name:     "forbidden",
			status:   http.StatusForbidden,
			body:     `forbidden`,
			wantAuth: true,
			wantCode: "Forbidden",
		},
		{
			name:          "server error",
			status:        http.StatusInternalServerError,
			body:          `{"success":false,"error":"internal server error"}`,
			wantTransient: true,
			wantCode:      "internal server error",
		},
		{
			name:          "whole batch rejected",
			status:        http.StatusBadRequest,
			body:          `{"success":false,"error":"invalid device id","message":"device id cannot be empty"}`,
			wantTransient: true,
			wantCode:      "invalid device id",
		},
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"success":false,"error":"rate limit exceeded"}`,
			wantTransient: true,
			wantCode:      "rate limit exceeded",
		},
		{
			name:         "request too large",
			status:       http.StatusRequestEntityTooLarge,
			body:         `{"success":false,"error":"request too large","message":"at most 1024 bytes per push"}`,
			wantTooLarge: true,
			wantCode:     "request too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "t", time.Second).Pull(context.Background(), 0, "d", 0)
			require.Error(t, err)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantCode, se.Code)
			assert.Equal(t, tt.wantAuth, IsAuth(err))
			assert.Equal(t, tt.wantTransient, IsTransient(err))
			assert.Equal(t, tt.wantTooLarge, IsTooLarge(err))
		})
	}
}

func TestClient_NetworkErrors(t *testing.T) {
	t.Run("server down", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := NewClient(url, "t", time.Second).Push(context.Background(), api.PushRequest{DeviceID: "d"})
		require.Error(t, err)

		var ne *NetworkError
		assert.ErrorAs(t, err, &ne)
		assert.True(t, IsTransient(err))
		assert.False(t, IsAuth(err))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		_, err := NewClient(server.URL, "t", 50*time.Millisecond).Pull(context.Background(), 0, "d", 0)
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})

	t.Run("canceled by caller", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewClient(server.URL, "t", time.Second).Pull(ctx, 0, "d", 0)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.False(t, IsTransient(err))
	})
}

func TestClient_StreamEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "http://localhost:8080", want: "ws://localhost:8080/api/v1/sync/ws"},
		{base: "https://sync.example.com/", want: "wss://sync.example.com/api/v1/sync/ws"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			u, header, err := NewClient(tt.base, "secret", time.Second).StreamEndpoint()
			require.NoError(t, err)
			assert.Equal(t, tt.want, u)
			assert.Equal(t, "Bearer secret", header.Get("Authorization"))
		})
	}
}

func TestClient_SetToken(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(api.StatusResponse{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "old", time.Second)
	_, err := client.Status(context.Background(), "device-a")
	require.NoError(t, err)

	client.SetToken("new")
	_, err = client.Status(context.Background(), "device-a")
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer old", "Bearer new"}, got)
}
