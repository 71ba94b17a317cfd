package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadClient("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Server.URL)
	assert.Equal(t, "opsync.db", cfg.DB)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 15*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, time.Second, cfg.Sync.RetryBase)
	assert.Equal(t, 5*time.Minute, cfg.Sync.RetryMax)
	assert.Equal(t, 30, cfg.Sync.RetentionDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention())
	assert.True(t, cfg.Realtime.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Conflicts.CriticalFields)
}

func TestLoadClient_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  url: https://sync.example.com
  token: file-token
db: /var/lib/opsync/client.db
sync:
  batch_size: 20
  request_timeout: 5s
conflicts:
  critical_fields:
    project: [status]
    statement: [total, currency]
log:
  level: debug
`)

	// окружение имеет приоритет над файлом
	t.Setenv("OPSYNC_SERVER_TOKEN", "env-token")
	t.Setenv("OPSYNC_SYNC_BATCH_SIZE", "10")

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.Server.URL)
	assert.Equal(t, "env-token", cfg.Server.Token)
	assert.Equal(t, "/var/lib/opsync/client.db", cfg.DB)
	assert.Equal(t, 10, cfg.Sync.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Sync.RequestTimeout)
	assert.Equal(t, []string{"status"}, cfg.Conflicts.CriticalFields["project"])
	assert.Equal(t, []string{"total", "currency"}, cfg.Conflicts.CriticalFields["statement"])
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadClient_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "zero batch", content: "sync:\n  batch_size: 0\n"},
		{name: "negative retention", content: "sync:\n  retention_days: -1\n"},
		{name: "retry max below base", content: "sync:\n  retry_base: 10s\n  retry_max: 1s\n"},
		{name: "unknown kind", content: "conflicts:\n  critical_fields:\n    invoice: [total]\n"},
		{name: "bad log level", content: "log:\n  level: loud\n"},
		{name: "zero lock timeout", content: "lock_timeout: 0s\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadClient(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadClient_MissingExplicitFile(t *testing.T) {
	_, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadServer(t *testing.T) {
	path := writeConfig(t, `
addr: 127.0.0.1:9090
jwt:
  issuer: test
archive:
  bucket: opsync-archive
  interval: 1h
`)
	t.Setenv("OPSYNC_SERVER_JWT_SECRET", "0123456789abcdef0123")

	cfg, err := LoadServer(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, "test", cfg.JWT.Issuer)
	assert.Equal(t, "0123456789abcdef0123", cfg.JWT.Secret)
	assert.Equal(t, 720*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 500, cfg.Sync.MaxBatchSize)
	assert.Equal(t, int64(16<<20), cfg.Sync.MaxRequestBytes)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, time.Hour, cfg.Archive.Interval)
	assert.Equal(t, "opsync/", cfg.Archive.Prefix)
	assert.NoError(t, cfg.RequireSecret())
}

func TestLoadServer_RequestCapBelowPayloadLimit(t *testing.T) {
	_, err := LoadServer(writeConfig(t, "sync:\n  max_request_bytes: 1024\n"))
	assert.Error(t, err)
}

func TestServer_RequireSecret(t *testing.T) {
	cfg := &Server{}
	assert.Error(t, cfg.RequireSecret())

	cfg.JWT.Secret = "short"
	assert.Error(t, cfg.RequireSecret())
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
