package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/server/handlers"
)

const testSecret = "cli-test-secret-0123456789"

func executeRoot(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(BuildInfo{Version: "1.2.3", BuildDate: "2026-10-01", GitCommit: "abc123"})
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// isolate убирает влияние конфигурации пользователя
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPSYNC_SERVER_DB", filepath.Join(t.TempDir(), "server.db"))
	t.Setenv("OPSYNC_SERVER_LOG_LEVEL", "error")
}

func TestVersion(t *testing.T) {
	out, err := executeRoot(context.Background(), t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    1.2.3")
	assert.Contains(t, out, "Build Date: 2026-10-01")
}

func TestToken(t *testing.T) {
	isolate(t)
	t.Setenv("OPSYNC_SERVER_JWT_SECRET", testSecret)

	out, err := executeRoot(context.Background(), t, "token", "u1", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := handlers.ValidateAccessToken(handlers.JWTConfig{
		Secret: []byte(testSecret),
		Issuer: "opsync",
	}, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_Errors(t *testing.T) {
	isolate(t)

	_, err := executeRoot(context.Background(), t, "token", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")

	t.Setenv("OPSYNC_SERVER_JWT_SECRET", testSecret)
	_, err = executeRoot(context.Background(), t, "token", "u1", "--ttl", "-1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ttl must be positive")

	_, err = executeRoot(context.Background(), t, "token")
	require.Error(t, err)
}

func TestArchive(t *testing.T) {
	isolate(t)

	out, err := executeRoot(context.Background(), t, "archive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No archives.")

	_, err = executeRoot(context.Background(), t, "archive", "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive is disabled")
}

func TestServe_StopsOnCancel(t *testing.T) {
	isolate(t)
	t.Setenv("OPSYNC_SERVER_JWT_SECRET", testSecret)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := executeRoot(ctx, t, "serve", "--addr", "127.0.0.1:0")
	require.NoError(t, err)
}

func TestServe_RequiresSecret(t *testing.T) {
	isolate(t)

	_, err := executeRoot(context.Background(), t, "serve", "--addr", "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
}
