package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		db         Pinger
		name       string
		wantStatus string
		wantCode   int
	}{
		{
			name:       "no storage",
			db:         nil,
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "storage available",
			db:         pingerFunc(func(context.Context) error { return nil }),
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "storage unavailable",
			db:         pingerFunc(func(context.Context) error { return errors.New("disk I/O error") }),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(setupTestLogger(), tt.db, "dev")

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()

			handler.Health(w, req)

			resp := w.Result()
			defer func() {
				err := resp.Body.Close()
				assert.NoError(t, err)
			}()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var healthResp api.HealthResponse
			err := json.NewDecoder(resp.Body).Decode(&healthResp)
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, healthResp.Status)
			assert.Equal(t, "dev", healthResp.Version)
		})
	}
}
