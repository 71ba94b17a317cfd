package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/clock"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/validation"
)

var (
	// ErrEntityExists сущность с таким id уже есть (в том числе удалённая)
	ErrEntityExists = errors.New("entity already exists")

	// ErrEntityDeleted сущность помечена tombstone
	ErrEntityDeleted = errors.New("entity is deleted")

	// ErrInvalidPayload payload не является JSON объектом
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrRejected операция не пройдёт проверку на сервере
	ErrRejected = errors.New("operation would be rejected by server")
)

//go:generate moq -out service_mock.go . Service

// Service локальные мутации сущностей.
// Каждая мутация записывается в журнал операций и сразу видна локально,
// сеть не используется.
type Service interface {
	// Create создает сущность; пустой id заменяется сгенерированным
	Create(ctx context.Context, kind models.EntityKind, id string, payload json.RawMessage) (*models.Operation, error)

	// Update заменяет документ сущности целиком
	Update(ctx context.Context, entityID string, payload json.RawMessage) (*models.Operation, error)

	// Delete помечает сущность tombstone
	Delete(ctx context.Context, entityID string) (*models.Operation, error)

	// Get возвращает сущность, включая удалённые
	Get(ctx context.Context, entityID string) (*models.Entity, error)

	// List возвращает сущности одного вида
	List(ctx context.Context, kind models.EntityKind, includeDeleted bool) ([]*models.Entity, error)

	// ListReferencing возвращает живые сущности, ссылающиеся на ref
	ListReferencing(ctx context.Context, ref string) ([]*models.Entity, error)
}

// Store хранилища, которые нужны сервису
type Store interface {
	storage.OperationLog
	storage.EntityStore
	storage.MetadataStorage
}

// service handles client-side entity mutations
type service struct {
	store  Store
	clock  *clock.Clock
	userID string
	newID  func() string
}

// NewService creates a new data service for userID
func NewService(store Store, clk *clock.Clock, userID string) Service {
	return &service{
		store:  store,
		clock:  clk,
		userID: userID,
		newID:  uuid.NewString,
	}
}

// Create создает сущность
func (s *service) Create(ctx context.Context, kind models.EntityKind, id string, payload json.RawMessage) (*models.Operation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}

	if id == "" {
		id = s.newID()
	}
	entityID, err := models.NormalizeRef(kind, id)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetEntity(ctx, entityID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntityExists, entityID)
	} else if !errors.Is(err, storage.ErrEntityNotFound) {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return s.apply(ctx, models.OpCreate, kind, entityID, payload, nil)
}

// Update заменяет документ сущности
func (s *service) Update(ctx context.Context, entityID string, payload json.RawMessage) (*models.Operation, error) {
	entity, err := s.live(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, models.OpUpdate, entity.Kind, entity.ID, payload, entity)
}

// Delete помечает сущность удалённой.
// Ссылающиеся сущности не трогаются: висячие ссылки допустимы.
func (s *service) Delete(ctx context.Context, entityID string) (*models.Operation, error) {
	entity, err := s.live(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, models.OpDelete, entity.Kind, entity.ID, nil, entity)
}

// Get возвращает сущность по канонической ссылке
func (s *service) Get(ctx context.Context, entityID string) (*models.Entity, error) {
	if _, _, err := models.SplitRef(entityID); err != nil {
		return nil, err
	}
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", entityID, err)
	}
	return entity, nil
}

// List возвращает сущности одного вида
func (s *service) List(ctx context.Context, kind models.EntityKind, includeDeleted bool) ([]*models.Entity, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownEntityKind, kind)
	}
	return s.store.ListEntities(ctx, kind, includeDeleted)
}

// ListReferencing возвращает живые сущности, ссылающиеся на ref
func (s *service) ListReferencing(ctx context.Context, ref string) ([]*models.Entity, error) {
	if _, _, err := models.SplitRef(ref); err != nil {
		return nil, err
	}
	return s.store.ListReferencing(ctx, ref)
}

func (s *service) live(ctx context.Context, entityID string) (*models.Entity, error) {
	entity, err := s.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity.Deleted() {
		return nil, fmt.Errorf("%w: %s", ErrEntityDeleted, entityID)
	}
	return entity, nil
}

// apply строит операцию, применяет её к сущности и атомарно сохраняет оба
func (s *service) apply(ctx context.Context, typ models.OpType, kind models.EntityKind, entityID string, payload json.RawMessage, entity *models.Entity) (*models.Operation, error) {
	if typ != models.OpDelete {
		if _, err := models.DecodePayload(payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		normalized, err := models.NormalizePayloadRefs(kind, payload)
		if err != nil {
			return nil, err
		}
		payload = normalized
	}

	deviceID, err := s.store.EnsureDeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device id: %w", err)
	}

	sc, err := s.store.GetSyncContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync context: %w", err)
	}

	op := &models.Operation{
		ID:              s.newID(),
		DeviceID:        deviceID,
		UserID:          s.userID,
		Type:            typ,
		EntityKind:      kind,
		EntityID:        entityID,
		Payload:         payload,
		ClientTimestamp: s.clock.Now(),
		BaseSeq:         sc.ServerSeq,
	}

	// Те же проверки, что и на сервере: отклонённая операция не должна
	// попасть в журнал и в проекцию
	if err := validation.ValidateOperation(op); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRejected, err)
	}

	if entity == nil {
		entity = &models.Entity{}
	}
	entity.ApplyOperation(op)

	if err := s.store.ApplyLocal(ctx, op, entity); err != nil {
		return nil, fmt.Errorf("failed to store operation: %w", err)
	}

	return op, nil
}
