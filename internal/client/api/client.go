package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/opsync/pkg/api"
)

// DefaultTimeout таймаут одного запроса по умолчанию
const DefaultTimeout = 15 * time.Second

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	mu         sync.RWMutex
}

// NewClient создает новый API клиент.
// Каждый запрос ограничен timeout; истечение таймаута считается сетевой ошибкой.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetToken заменяет токен доступа для следующих запросов
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Push отправляет батч операций
func (c *Client) Push(ctx context.Context, req api.PushRequest) (*api.PushData, error) {
	var resp api.PushResponse
	if err := c.doRequest(ctx, "push", http.MethodPost, "/api/v1/sync/push", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &StatusError{Op: "push", StatusCode: http.StatusOK, Code: "unsuccessful response"}
	}
	return &resp.Data, nil
}

// Pull получает записи с serverSeq > since
func (c *Client) Pull(ctx context.Context, since int64, deviceID string, limit int) (*api.PullData, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	q.Set("deviceId", deviceID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp api.PullResponse
	if err := c.doRequest(ctx, "pull", http.MethodGet, "/api/v1/sync/pull?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &StatusError{Op: "pull", StatusCode: http.StatusOK, Code: "unsuccessful response"}
	}
	return &resp.Data, nil
}

// Status возвращает диагностическую сводку
func (c *Client) Status(ctx context.Context, deviceID string) (*api.StatusResponse, error) {
	var resp api.StatusResponse
	path := "/api/v1/sync/status?deviceId=" + url.QueryEscape(deviceID)
	if err := c.doRequest(ctx, "status", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) error {
	var resp api.HealthResponse
	if err := c.doRequest(ctx, "health", http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return &StatusError{Op: "health", StatusCode: http.StatusServiceUnavailable, Code: resp.Status}
	}
	return nil
}

// StreamEndpoint возвращает адрес realtime канала и заголовки для подключения
func (c *Client) StreamEndpoint() (string, http.Header, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/sync/ws")
	if err != nil {
		return "", nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if token := c.bearer(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return u.String(), header, nil
}

// doRequest выполняет HTTP запрос и классифицирует ошибки
func (c *Client) doRequest(ctx context.Context, op, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request body: %w", op, err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Отмена вызывающей стороной не сетевая ошибка
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return &NetworkError{Op: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Op: op, StatusCode: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			statusErr.Code = errResp.Error
			statusErr.Message = errResp.Message
		}
		return statusErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
	}

	return nil
}
