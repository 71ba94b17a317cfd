package api

import "encoding/json"

// Operation представляет операцию журнала в формате протокола
type Operation struct {
	ID              string          `json:"id"`
	DeviceID        string          `json:"deviceId"`
	UserID          string          `json:"userId"`
	Type            string          `json:"type"`
	EntityKind      string          `json:"entityKind"`
	EntityID        string          `json:"entityId"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	ClientTimestamp int64           `json:"clientTimestamp"`
	BaseSeq         int64           `json:"baseSeq,omitempty"`
}

// ServerOperation представляет запись серверного журнала
type ServerOperation struct {
	Operation
	ServerSeq  int64 `json:"serverSeq"`
	ReceivedAt int64 `json:"receivedAt"` // миллисекунды
}

// PushRequest тело POST /sync/push
type PushRequest struct {
	DeviceID   string      `json:"deviceId"`
	Operations []Operation `json:"operations"`
}

// FailedOp отказ по одной операции
type FailedOp struct {
	OpID    string `json:"opId"`
	Error   string `json:"error"`             // класс ошибки: validation, reference, uniqueness, transient
	Message string `json:"message,omitempty"` // описание для логов
}

// PushData данные ответа POST /sync/push
type PushData struct {
	Assigned  map[string]int64 `json:"assigned"` // opId -> serverSeq для подтверждённых
	AckOps    []string         `json:"ackOps"`
	Failed    []FailedOp       `json:"failed"`
	ServerSeq int64            `json:"serverSeq"`
}

// PushResponse ответ POST /sync/push
type PushResponse struct {
	Data    PushData `json:"data"`
	Success bool     `json:"success"`
}

// PullData данные ответа GET /sync/pull
type PullData struct {
	Operations []ServerOperation `json:"operations"`
	ServerSeq  int64             `json:"serverSeq"`
	ServerTime int64             `json:"serverTime"` // миллисекунды
	HasMore    bool              `json:"hasMore"`
}

// PullResponse ответ GET /sync/pull
type PullResponse struct {
	Data    PullData `json:"data"`
	Success bool     `json:"success"`
}

// StatusResponse ответ GET /sync/status (диагностика)
type StatusResponse struct {
	TotalOperations int64 `json:"totalOperations"`
	LatestServerSeq int64 `json:"latestServerSeq"`
}

// Notice сообщение realtime канала о новых записях
type Notice struct {
	Type      string `json:"type"` // всегда "ops"
	DeviceID  string `json:"deviceId"`
	ServerSeq int64  `json:"serverSeq"`
}

// NoticeTypeOps тип уведомления о новых операциях
const NoticeTypeOps = "ops"

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
	Success bool   `json:"success"`
}

// HealthResponse ответ GET /health
type HealthResponse struct {
	Status  string `json:"status"` // ok или unavailable
	Version string `json:"version,omitempty"`
}
