package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/opsync/pkg/api"
)

// Config настройки realtime канала
type Config struct {
	BufferSize   int           // BufferSize размер буфера уведомлений на подписку
	PingInterval time.Duration // PingInterval период ping для поддержания соединения
	WriteTimeout time.Duration // WriteTimeout таймаут записи в WebSocket
}

// DefaultConfig returns default realtime configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   16,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Subscription активная подписка одного соединения на уведомления пользователя
type Subscription struct {
	created time.Time
	ch      chan api.Notice
	done    chan struct{}
	ID      string
	UserID  string
	mu      sync.Mutex
	closed  bool
}

// C returns the channel for receiving notices
func (s *Subscription) C() <-chan api.Notice {
	return s.ch
}

// Close closes the subscription
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}

// Hub рассылает уведомления о новых записях журнала подписчикам пользователя.
// Уведомление лишь ускоряет pull, поэтому при переполнении буфера оно отбрасывается.
type Hub struct {
	logger *slog.Logger
	subs   map[string]*Subscription
	config Config
	nextID uint64
	mu     sync.RWMutex
}

// NewHub creates a new realtime hub
func NewHub(logger *slog.Logger, cfg Config) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Hub{
		logger: logger,
		config: cfg,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe creates a new subscription for the user
func (h *Hub) Subscribe(userID string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		ID:      fmt.Sprintf("sub-%d", h.nextID),
		UserID:  userID,
		ch:      make(chan api.Notice, h.config.BufferSize),
		done:    make(chan struct{}),
		created: time.Now(),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Publish sends a notice to every subscription of the user
func (h *Hub) Publish(userID string, notice api.Notice) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.UserID != userID {
			continue
		}

		select {
		case sub.ch <- notice:
		default:
			// Буфер полон: клиент всё равно сделает pull по таймеру
			h.logger.Debug("Realtime buffer full, notice dropped", "sub_id", sub.ID, "user_id", userID)
		}
	}
}

// Count returns the number of active subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve upgrades the request and streams notices of userID until the client goes away
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("WebSocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.Subscribe(userID)
	defer h.Unsubscribe(sub.ID)

	h.logger.Info("Realtime client connected", "user_id", userID, "sub_id", sub.ID)

	// Клиент ничего не присылает, чтение нужно для обработки close и pong
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.forward(ctx, conn, sub)

	h.logger.Info("Realtime client disconnected", "user_id", userID, "sub_id", sub.ID)
}

func (h *Hub) forward(ctx context.Context, conn *websocket.Conn, sub *Subscription) {
	ping := time.NewTicker(h.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case <-ping.C:
			deadline := time.Now().Add(h.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case notice, ok := <-sub.ch:
			if !ok {
				return
			}
			msg, err := json.Marshal(notice)
			if err != nil {
				h.logger.Error("Failed to marshal notice", "error", err)
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
