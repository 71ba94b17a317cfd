package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/server/handlers"
	"github.com/iudanet/opsync/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func decodeError(t *testing.T, body io.Reader) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func testJWTConfig() handlers.JWTConfig {
	return handlers.JWTConfig{
		Secret:         []byte("test-secret-key"),
		Issuer:         "opsync",
		AccessTokenTTL: 15 * time.Minute,
	}
}

func TestAuthMiddleware_Success(t *testing.T) {
	cfg := testJWTConfig()

	token, _, err := handlers.GenerateAccessToken(cfg, "user123")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.GetUserID(r.Context())
		require.True(t, ok, "user_id should be in context")
		assert.Equal(t, "user123", userID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	cfg := testJWTConfig()

	otherCfg := cfg
	otherCfg.Secret = []byte("another-secret")
	foreign, _, err := handlers.GenerateAccessToken(otherCfg, "user123")
	require.NoError(t, err)

	expiredCfg := cfg
	expiredCfg.AccessTokenTTL = -time.Minute
	expired, _, err := handlers.GenerateAccessToken(expiredCfg, "user123")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantErr string
	}{
		{name: "missing header", header: "", wantErr: "missing token"},
		{name: "no Bearer prefix", header: "token123", wantErr: "invalid token format"},
		{name: "wrong prefix", header: "Basic token123", wantErr: "invalid token format"},
		{name: "malformed token", header: "Bearer invalid.token.here", wantErr: "invalid token"},
		{name: "wrong secret", header: "Bearer " + foreign, wantErr: "invalid token"},
		{name: "expired", header: "Bearer " + expired, wantErr: "invalid token"},
	}

	handler := AuthMiddleware(setupTestLogger(), cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			resp := decodeError(t, w.Body)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.Error, tt.wantErr)
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "ok", status: http.StatusOK, wantLevel: "level=INFO"},
		{name: "client error", status: http.StatusBadRequest, wantLevel: "level=WARN"},
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			handler := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull?deviceId=device-a", nil)
			req.Header.Set("Authorization", "Bearer secret-token")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "path=/api/v1/sync/pull")
			assert.Contains(t, out, "device_id=device-a")
			assert.Contains(t, out, "bytes_written=4")
			assert.Contains(t, out, "request_id=")
			assert.NotContains(t, out, "secret-token")
		})
	}
}

func TestLoggingWithSkip(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := LoggingWithSkip(logger, []string{"/api/v1/health"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/sync/status", nil))
	assert.Contains(t, buf.String(), "/api/v1/sync/status")
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(setupTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/sync/push", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w.Body)
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute, setupTestLogger())
	defer limiter.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("a")
	assert.True(t, ok)
	ok, _ = limiter.Allow("a")
	assert.True(t, ok)

	ok, retry := limiter.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	// другой ключ независим
	ok, _ = limiter.Allow("b")
	assert.True(t, ok)

	// новое окно восстанавливает лимит
	now = now.Add(time.Minute)
	ok, _ = limiter.Allow("a")
	assert.True(t, ok)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, setupTestLogger())
	defer limiter.Stop()

	now := time.Now()
	limiter.now = func() time.Time { return now }
	limiter.Allow("old")

	now = now.Add(3 * time.Minute)
	limiter.cleanupOldBuckets()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.buckets)
}

func TestRateLimiter_Middleware(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute, setupTestLogger())
	defer limiter.Stop()

	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := func(userID, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/pull", nil)
		req.RemoteAddr = ip + ":12345"
		if userID != "" {
			req = req.WithContext(context.WithValue(req.Context(), handlers.UserIDKey, userID))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, request("user-1", "10.0.0.1").Code)

	limited := request("user-1", "10.0.0.2")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	// другой пользователь с того же адреса не затронут
	assert.Equal(t, http.StatusOK, request("user-2", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, request("", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, request("", "10.0.0.1").Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, remote: "3.3.3.3:1", want: "1.1.1.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "4.4.4.4"}, remote: "3.3.3.3:1", want: "4.4.4.4"},
		{name: "remote addr", remote: "3.3.3.3:1", want: "3.3.3.3"},
		{name: "remote without port", remote: "3.3.3.3", want: "3.3.3.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
