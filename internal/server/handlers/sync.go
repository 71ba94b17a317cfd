package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
	"github.com/iudanet/opsync/internal/validation"
	"github.com/iudanet/opsync/internal/wire"
	"github.com/iudanet/opsync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
)

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

//go:generate moq -out notifier_mock.go . Notifier

// Notifier публикует уведомления о новых записях журнала
type Notifier interface {
	Publish(userID string, notice api.Notice)
}

// Streamer обслуживает realtime соединение пользователя
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

// SyncConfig ограничения протокола синхронизации
type SyncConfig struct {
	MaxRequestBytes  int64 // MaxRequestBytes предел тела push запроса
	MaxBatchSize     int   // MaxBatchSize максимум операций в одном push
	DefaultPullLimit int   // DefaultPullLimit размер страницы pull по умолчанию
	MaxPullLimit     int   // MaxPullLimit максимальный размер страницы pull
}

// DefaultSyncConfig returns default protocol limits
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxRequestBytes:  16 << 20,
		MaxBatchSize:     500,
		DefaultPullLimit: 500,
		MaxPullLimit:     1000,
	}
}

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger   *slog.Logger
	storage  storage.OperationStorage
	notifier Notifier
	streamer Streamer
	now      func() time.Time
	config   SyncConfig
}

// NewSyncHandler creates a new sync handler.
// notifier и streamer могут быть nil, если realtime канал выключен.
func NewSyncHandler(logger *slog.Logger, store storage.OperationStorage, notifier Notifier, streamer Streamer, cfg SyncConfig) *SyncHandler {
	def := DefaultSyncConfig()
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = def.MaxRequestBytes
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}
	if cfg.MaxPullLimit <= 0 {
		cfg.MaxPullLimit = def.MaxPullLimit
	}
	if cfg.DefaultPullLimit <= 0 || cfg.DefaultPullLimit > cfg.MaxPullLimit {
		cfg.DefaultPullLimit = cfg.MaxPullLimit
	}

	return &SyncHandler{
		logger:   logger,
		storage:  store,
		notifier: notifier,
		streamer: streamer,
		now:      time.Now,
		config:   cfg,
	}
}

// Push обрабатывает POST /api/v1/sync/push.
// Отвечает тремя непересекающимися множествами: ackOps, failed и serverSeq.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Получаем user_id из контекста (установлен AuthMiddleware)
	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	var req api.PushRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Push request body too large", "user_id", userID, "limit", tooLarge.Limit)
			writeError(w, h.logger, http.StatusRequestEntityTooLarge, "request too large",
				fmt.Sprintf("at most %d bytes per push", tooLarge.Limit))
			return
		}
		h.logger.Warn("Failed to decode push request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateID("device id", req.DeviceID); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid device id", err.Error())
		return
	}
	if len(req.Operations) > h.config.MaxBatchSize {
		writeError(w, h.logger, http.StatusRequestEntityTooLarge, "batch too large",
			fmt.Sprintf("at most %d operations per push", h.config.MaxBatchSize))
		return
	}

	h.logger.Info("Push request",
		"user_id", userID,
		"device_id", req.DeviceID,
		"operations", len(req.Operations))

	data := api.PushData{
		AckOps:   []string{},
		Assigned: map[string]int64{},
		Failed:   []api.FailedOp{},
	}

	valid := make([]*models.Operation, 0, len(req.Operations))
	for _, apiOp := range req.Operations {
		op, err := h.toModel(apiOp, userID, req.DeviceID)
		if err != nil {
			class := validation.ClassOf(err)
			h.logger.Warn("Operation rejected",
				"user_id", userID,
				"op_id", apiOp.ID,
				"class", class,
				"error", err)
			data.Failed = append(data.Failed, api.FailedOp{OpID: apiOp.ID, Error: string(class), Message: err.Error()})
			continue
		}
		valid = append(valid, op)
	}

	if len(valid) == 0 {
		st, err := h.storage.Status(ctx, userID)
		if err != nil {
			h.logger.Error("Failed to get status", "error", err, "user_id", userID)
			writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
			return
		}
		data.ServerSeq = st.LatestServerSeq
		writeJSON(w, h.logger, http.StatusOK, api.PushResponse{Success: true, Data: data})
		return
	}

	res, err := h.storage.AcceptOperations(ctx, userID, valid, h.now())
	if err != nil {
		h.logger.Error("Failed to accept operations", "error", err, "user_id", userID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	for _, ack := range res.Acks {
		data.AckOps = append(data.AckOps, ack.OpID)
		data.Assigned[ack.OpID] = ack.ServerSeq
	}
	for _, f := range res.Failed {
		h.logger.Warn("Operation rejected",
			"user_id", userID,
			"op_id", f.OpID,
			"class", f.Class,
			"error", f.Message)
		data.Failed = append(data.Failed, api.FailedOp{OpID: f.OpID, Error: string(f.Class), Message: f.Message})
	}
	data.ServerSeq = res.ServerSeq

	if res.Inserted > 0 && h.notifier != nil {
		h.notifier.Publish(userID, api.Notice{
			Type:      api.NoticeTypeOps,
			DeviceID:  req.DeviceID,
			ServerSeq: res.ServerSeq,
		})
	}

	writeJSON(w, h.logger, http.StatusOK, api.PushResponse{Success: true, Data: data})

	h.logger.Info("Push completed",
		"user_id", userID,
		"acked", len(data.AckOps),
		"inserted", res.Inserted,
		"failed", len(data.Failed),
		"server_seq", data.ServerSeq)
}

// Pull обрабатывает GET /api/v1/sync/pull?since=<serverSeq>&deviceId=<id>&limit=<n>
// Возвращает записи области пользователя с serverSeq > since по возрастанию
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	q := r.URL.Query()

	var since int64
	if s := q.Get("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			h.logger.Warn("Invalid since parameter", "since", s)
			writeError(w, h.logger, http.StatusBadRequest, "invalid since parameter", "")
			return
		}
		since = v
	}

	limit := h.config.DefaultPullLimit
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, h.logger, http.StatusBadRequest, "invalid limit parameter", "")
			return
		}
		limit = min(v, h.config.MaxPullLimit)
	}

	deviceID := q.Get("deviceId")

	// Запрашиваем на одну запись больше, чтобы узнать про следующую страницу
	ops, err := h.storage.OperationsSince(ctx, userID, since, limit+1)
	if err != nil {
		h.logger.Error("Failed to get operations", "error", err, "user_id", userID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	hasMore := len(ops) > limit
	if hasMore {
		ops = ops[:limit]
	}

	data := api.PullData{
		Operations: make([]api.ServerOperation, 0, len(ops)),
		ServerSeq:  since,
		ServerTime: h.now().UnixMilli(),
		HasMore:    hasMore,
	}
	for _, op := range ops {
		data.Operations = append(data.Operations, wire.ToServerOperation(op))
		if op.ServerSeq > data.ServerSeq {
			data.ServerSeq = op.ServerSeq
		}
	}

	writeJSON(w, h.logger, http.StatusOK, api.PullResponse{Success: true, Data: data})

	h.logger.Info("Pull completed",
		"user_id", userID,
		"device_id", deviceID,
		"since", since,
		"returned", len(data.Operations),
		"has_more", hasMore)
}

// Status обрабатывает GET /api/v1/sync/status (диагностика)
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	st, err := h.storage.Status(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to get status", "error", err, "user_id", userID)
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error", "")
		return
	}

	h.logger.Debug("Status request", "user_id", userID, "device_id", r.URL.Query().Get("deviceId"))

	writeJSON(w, h.logger, http.StatusOK, api.StatusResponse{
		TotalOperations: st.TotalOperations,
		LatestServerSeq: st.LatestServerSeq,
	})
}

// Stream обрабатывает GET /api/v1/sync/ws
func (h *SyncHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	if h.streamer == nil {
		writeError(w, h.logger, http.StatusNotFound, "realtime channel disabled", "")
		return
	}

	h.streamer.Serve(w, r, userID)
}

// toModel конвертирует операцию протокола и проверяет её.
// Область данных всегда берётся из токена, а не из тела запроса.
func (h *SyncHandler) toModel(in api.Operation, userID, deviceID string) (*models.Operation, error) {
	if in.UserID != "" && in.UserID != userID {
		return nil, &validation.Error{Class: models.ErrorClassValidation, Message: "operation belongs to another user"}
	}
	if in.DeviceID == "" {
		in.DeviceID = deviceID
	}

	op := wire.FromOperation(in)
	op.UserID = userID

	if err := validation.ValidateOperation(op); err != nil {
		return nil, err
	}

	// Сервер хранит ссылки только в канонической форме
	if op.Type != models.OpDelete {
		payload, err := models.NormalizePayloadRefs(op.EntityKind, op.Payload)
		if err != nil {
			return nil, &validation.Error{Class: models.ErrorClassReference, Message: err.Error()}
		}
		op.Payload = payload
	} else {
		op.Payload = nil
	}

	return op, nil
}
