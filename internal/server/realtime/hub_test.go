package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHub_PublishScopedByUser(t *testing.T) {
	hub := NewHub(setupTestLogger(), Config{BufferSize: 2})

	a := hub.Subscribe("user-a")
	b := hub.Subscribe("user-b")
	assert.Equal(t, 2, hub.Count())

	hub.Publish("user-a", api.Notice{Type: api.NoticeTypeOps, ServerSeq: 7, DeviceID: "d1"})

	select {
	case n := <-a.C():
		assert.Equal(t, int64(7), n.ServerSeq)
	default:
		t.Fatal("expected notice for user-a")
	}

	select {
	case <-b.C():
		t.Fatal("user-b must not receive user-a notices")
	default:
	}

	hub.Unsubscribe(a.ID)
	hub.Unsubscribe(a.ID)
	assert.Equal(t, 1, hub.Count())
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	hub := NewHub(setupTestLogger(), Config{BufferSize: 1})
	sub := hub.Subscribe("u")

	hub.Publish("u", api.Notice{ServerSeq: 1})
	hub.Publish("u", api.Notice{ServerSeq: 2})

	n := <-sub.C()
	assert.Equal(t, int64(1), n.ServerSeq)
	select {
	case <-sub.C():
		t.Fatal("second notice should have been dropped")
	default:
	}
}

func TestHub_ServeWebSocket(t *testing.T) {
	hub := NewHub(setupTestLogger(), DefaultConfig())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "user-1")
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("user-1", api.Notice{Type: api.NoticeTypeOps, ServerSeq: 42, DeviceID: "dev-b"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var notice api.Notice
	require.NoError(t, json.Unmarshal(msg, &notice))
	assert.Equal(t, api.NoticeTypeOps, notice.Type)
	assert.Equal(t, int64(42), notice.ServerSeq)
	assert.Equal(t, "dev-b", notice.DeviceID)

	// После закрытия клиента подписка удаляется
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
