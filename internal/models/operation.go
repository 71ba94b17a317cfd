package models

import (
	"encoding/json"
	"time"
)

// OpType тип операции в журнале
type OpType string

const (
	OpCreate OpType = "CREATE"
	OpUpdate OpType = "UPDATE"
	OpDelete OpType = "DELETE"
)

// Valid проверяет, что тип операции входит в закрытое множество
func (t OpType) Valid() bool {
	switch t {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// Operation представляет одну мутацию, сделанную на устройстве.
// После создания операция неизменна, меняются только поля подтверждения
// (Synced, SyncedAt, ServerSeq). Исправления оформляются новыми операциями.
type Operation struct {
	SyncedAt        *time.Time      `json:"synced_at,omitempty"` // SyncedAt время подтверждения сервером
	ID              string          `json:"id"`                  // ID UUID операции, ключ идемпотентности
	DeviceID        string          `json:"device_id"`           // DeviceID устройство, создавшее операцию
	UserID          string          `json:"user_id"`             // UserID владелец данных
	Type            OpType          `json:"type"`                // Type CREATE | UPDATE | DELETE
	EntityKind      EntityKind      `json:"entity_kind"`         // EntityKind вид сущности
	EntityID        string          `json:"entity_id"`           // EntityID каноническая форма kind:id
	Payload         json.RawMessage `json:"payload,omitempty"`   // Payload полный документ сущности
	ClientTimestamp int64           `json:"client_timestamp"`    // ClientTimestamp миллисекунды, строго растут в пределах процесса
	BaseSeq         int64           `json:"base_seq"`            // BaseSeq watermark устройства в момент создания
	ServerSeq       int64           `json:"server_seq"`          // ServerSeq номер, присвоенный сервером (0 пока не подтверждена)
	Synced          bool            `json:"synced"`              // Synced подтверждена сервером
}

// Pending возвращает true, если операция ещё не подтверждена сервером
func (o *Operation) Pending() bool {
	return !o.Synced
}

// IsNewerThan сравнивает две операции по клиентскому времени.
// При равных timestamp сравнивается DeviceID для детерминизма.
func (o *Operation) IsNewerThan(other *Operation) bool {
	if o.ClientTimestamp != other.ClientTimestamp {
		return o.ClientTimestamp > other.ClientTimestamp
	}
	return o.DeviceID > other.DeviceID
}

// Clone создает глубокую копию операции
func (o *Operation) Clone() *Operation {
	c := *o
	if o.Payload != nil {
		c.Payload = append(json.RawMessage(nil), o.Payload...)
	}
	if o.SyncedAt != nil {
		t := *o.SyncedAt
		c.SyncedAt = &t
	}
	return &c
}

// ServerOperation запись журнала на сервере: операция плюс порядок, назначенный сервером
type ServerOperation struct {
	ReceivedAt  time.Time `json:"received_at"`
	PayloadHash string    `json:"payload_hash"`
	Operation
}

// Ack подтверждение одной операции сервером
type Ack struct {
	OpID      string
	ServerSeq int64
}

// Failure отказ сервера принять операцию
type Failure struct {
	OpID    string
	Class   ErrorClass
	Message string
}

// ErrorClass классификация отказа по одной операции
type ErrorClass string

const (
	ErrorClassValidation ErrorClass = "validation" // нарушение схемы
	ErrorClassReference  ErrorClass = "reference"  // некорректная ссылка
	ErrorClassUniqueness ErrorClass = "uniqueness" // повторное создание сущности
	ErrorClassTransient  ErrorClass = "transient"  // временная ошибка сервера
)

// Permanent возвращает true для классов, повтор которых не может быть успешным
func (c ErrorClass) Permanent() bool {
	switch c {
	case ErrorClassValidation, ErrorClassReference, ErrorClassUniqueness:
		return true
	default:
		return false
	}
}
