package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// EntityKind вид синхронизируемой сущности. Множество закрыто:
// добавление нового вида требует правок во всех switch по EntityKind.
type EntityKind string

const (
	KindProject     EntityKind = "project"
	KindSubdocument EntityKind = "subdocument"
	KindMeasurement EntityKind = "measurement"
	KindStatement   EntityKind = "statement"
	KindAttachment  EntityKind = "attachment"
)

// EntityKinds все известные виды сущностей
var EntityKinds = []EntityKind{
	KindProject,
	KindSubdocument,
	KindMeasurement,
	KindStatement,
	KindAttachment,
}

// Valid проверяет, что вид сущности известен
func (k EntityKind) Valid() bool {
	switch k {
	case KindProject, KindSubdocument, KindMeasurement, KindStatement, KindAttachment:
		return true
	default:
		return false
	}
}

// ParseEntityKind разбирает строку в EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	k := EntityKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityKind, s)
	}
	return k, nil
}

// Entity материализованное состояние сущности на устройстве.
// Это проекция журнала операций, а не источник истины.
type Entity struct {
	DeletedAt *time.Time      `json:"deleted_at,omitempty"` // DeletedAt tombstone; nil для живой сущности
	Base      *EntityState    `json:"base,omitempty"`       // Base состояние, подтверждённое сервером; nil пока сервер сущность не видел
	Kind      EntityKind      `json:"kind"`                 // Kind вид сущности
	ID        string          `json:"id"`                   // ID каноническая форма kind:id
	LastOpID  string          `json:"last_op_id"`           // LastOpID последняя применённая операция
	DeviceID  string          `json:"device_id"`            // DeviceID устройство последнего писателя
	Payload   json.RawMessage `json:"payload,omitempty"`    // Payload полный документ
	ServerSeq int64           `json:"server_seq"`           // ServerSeq последняя применённая серверная запись
	UpdatedAt int64           `json:"updated_at"`           // UpdatedAt миллисекунды последней записи
}

// Deleted возвращает true, если сущность помечена tombstone
func (e *Entity) Deleted() bool {
	return e.DeletedAt != nil
}

// ApplyOperation применяет операцию к сущности. UPDATE поверх tombstone
// снимает пометку удаления.
func (e *Entity) ApplyOperation(op *Operation) {
	e.Kind = op.EntityKind
	e.ID = op.EntityID
	e.LastOpID = op.ID
	e.DeviceID = op.DeviceID
	e.UpdatedAt = op.ClientTimestamp
	if op.ServerSeq > e.ServerSeq {
		e.ServerSeq = op.ServerSeq
	}

	switch op.Type {
	case OpCreate, OpUpdate:
		e.Payload = append(json.RawMessage(nil), op.Payload...)
		e.DeletedAt = nil
	case OpDelete:
		t := time.UnixMilli(op.ClientTimestamp).UTC()
		e.DeletedAt = &t
	}
}

// EntityState снимок сущности без локальных неподтверждённых изменений
type EntityState struct {
	DeletedAt *time.Time      `json:"deleted_at,omitempty"`
	LastOpID  string          `json:"last_op_id"`
	DeviceID  string          `json:"device_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ServerSeq int64           `json:"server_seq"`
	UpdatedAt int64           `json:"updated_at"`
}

// Confirm переносит в Base серверную запись op.
// Записи не новее Base игнорируются: pull идёт по возрастанию serverSeq.
func (e *Entity) Confirm(op *Operation) {
	if e.Base != nil && op.ServerSeq <= e.Base.ServerSeq {
		return
	}

	confirmed := &Entity{Kind: op.EntityKind, ID: op.EntityID}
	confirmed.restore(e.Base)
	confirmed.ApplyOperation(op)
	confirmed.ServerSeq = op.ServerSeq

	e.Base = confirmed.state()
}

// Rebuild собирает сущность заново: Base плюс операции журнала, которые
// сервер ещё не вернул (неподтверждённые и подтверждённые после Base).
// Возвращает nil, если сущность на сервере не существует и в журнале
// по ней ничего не осталось.
func (e *Entity) Rebuild(ops []*Operation) *Entity {
	var baseSeq int64
	if e.Base != nil {
		baseSeq = e.Base.ServerSeq
	}

	replay := make([]*Operation, 0, len(ops))
	for _, op := range ops {
		if op.EntityID != e.ID {
			continue
		}
		if op.Pending() || op.ServerSeq > baseSeq {
			replay = append(replay, op)
		}
	}
	if e.Base == nil && len(replay) == 0 {
		return nil
	}
	sort.SliceStable(replay, func(i, j int) bool { return replay[j].IsNewerThan(replay[i]) })

	rebuilt := &Entity{Kind: e.Kind, ID: e.ID}
	rebuilt.restore(e.Base)
	for _, op := range replay {
		rebuilt.ApplyOperation(op)
	}
	if e.Base != nil {
		b := *e.Base
		rebuilt.Base = &b
	}
	return rebuilt
}

func (e *Entity) restore(s *EntityState) {
	if s == nil {
		return
	}
	e.DeletedAt = s.DeletedAt
	e.LastOpID = s.LastOpID
	e.DeviceID = s.DeviceID
	e.Payload = append(json.RawMessage(nil), s.Payload...)
	e.ServerSeq = s.ServerSeq
	e.UpdatedAt = s.UpdatedAt
}

func (e *Entity) state() *EntityState {
	return &EntityState{
		DeletedAt: e.DeletedAt,
		LastOpID:  e.LastOpID,
		DeviceID:  e.DeviceID,
		Payload:   append(json.RawMessage(nil), e.Payload...),
		ServerSeq: e.ServerSeq,
		UpdatedAt: e.UpdatedAt,
	}
}

// SyncContext состояние синхронизации устройства. Передаётся явно
// через Push/Pull и сохраняется вне хранилища сущностей.
type SyncContext struct {
	DeviceID          string `json:"device_id"`
	ServerSeq         int64  `json:"server_seq"`          // ServerSeq watermark: всё до него включительно уже получено
	LastSyncTimestamp int64  `json:"last_sync_timestamp"` // LastSyncTimestamp серверное время последнего pull (мс)
}

// ConflictState состояние записи о конфликте
type ConflictState string

const (
	ConflictNone      ConflictState = "NONE"
	ConflictDetected  ConflictState = "DETECTED"
	ConflictResolving ConflictState = "RESOLVING"
)

// Resolution способ разрешения конфликта
type Resolution string

const (
	ResolveKeepLocal  Resolution = "keep-local"
	ResolveKeepRemote Resolution = "keep-remote"
	ResolveMerge      Resolution = "merge"
)

// Valid проверяет способ разрешения
func (r Resolution) Valid() bool {
	switch r {
	case ResolveKeepLocal, ResolveKeepRemote, ResolveMerge:
		return true
	default:
		return false
	}
}

// Conflict запись о расхождении локальной и удалённой истории
// по критическому полю. Хранится по одной на сущность.
type Conflict struct {
	DetectedAt     time.Time       `json:"detected_at"`
	EntityKind     EntityKind      `json:"entity_kind"`
	EntityID       string          `json:"entity_id"`
	State          ConflictState   `json:"state"`
	RemoteOpID     string          `json:"remote_op_id"`
	RemoteDeviceID string          `json:"remote_device_id"`
	RemoteType     OpType          `json:"remote_type"`
	Fields         []string        `json:"fields,omitempty"` // Fields критические поля, значения которых расходятся
	LocalOpIDs     []string        `json:"local_op_ids"`
	LocalPayload   json.RawMessage `json:"local_payload,omitempty"`
	RemotePayload  json.RawMessage `json:"remote_payload,omitempty"`
	RemoteSeq      int64           `json:"remote_seq"`
	LocalDeleted   bool            `json:"local_deleted"`
}

// Open возвращает true, пока конфликт не разрешён
func (c *Conflict) Open() bool {
	return c.State == ConflictDetected || c.State == ConflictResolving
}
