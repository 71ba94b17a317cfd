package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/validation"
)

// ResolveConflict закрывает конфликт по сущности.
// Конфликт переводится в RESOLVING до любых изменений; при ошибке он
// остаётся в RESOLVING и разрешение можно повторить.
func (s *service) ResolveConflict(ctx context.Context, entityID string, resolution models.Resolution, merged json.RawMessage) error {
	if !resolution.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}

	c, err := s.store.GetConflict(ctx, entityID)
	if err != nil {
		return fmt.Errorf("failed to get conflict %s: %w", entityID, err)
	}

	if resolution == models.ResolveMerge {
		if _, err := models.DecodePayload(merged); err != nil {
			return fmt.Errorf("%w: merged payload: %v", ErrInvalidResolution, err)
		}
		merged, err = models.NormalizePayloadRefs(c.EntityKind, merged)
		if err != nil {
			return err
		}
	}

	c.State = models.ConflictResolving
	if err := s.store.SaveConflict(ctx, c); err != nil {
		return fmt.Errorf("failed to save conflict: %w", err)
	}

	sc, err := s.syncContext(ctx)
	if err != nil {
		return err
	}

	// Пока конфликт открыт, сущность хранит последнее локальное состояние
	localPayload, localDeleted := c.LocalPayload, c.LocalDeleted
	entity, err := s.store.GetEntity(ctx, entityID)
	switch {
	case err == nil:
		localPayload, localDeleted = entity.Payload, entity.Deleted()
	case errors.Is(err, storage.ErrEntityNotFound):
		entity = &models.Entity{}
	default:
		return fmt.Errorf("failed to get entity: %w", err)
	}

	switch resolution {
	case models.ResolveKeepLocal:
		typ := models.OpUpdate
		if localDeleted {
			typ = models.OpDelete
		}
		err = s.rewrite(ctx, sc, c, entity, typ, localPayload)

	case models.ResolveKeepRemote:
		err = s.keepRemote(ctx, sc, c, entity)

	case models.ResolveMerge:
		err = s.rewrite(ctx, sc, c, entity, models.OpUpdate, merged)
	}
	if err != nil {
		return err
	}

	if err := s.store.DeleteConflict(ctx, entityID); err != nil {
		return fmt.Errorf("failed to delete conflict: %w", err)
	}

	s.logger.Info("Conflict resolved", "entity_id", entityID, "resolution", resolution)
	return nil
}

// rewrite заменяет незапушенные локальные операции одной новой,
// сделанной с учётом удалённой записи
func (s *service) rewrite(ctx context.Context, sc *models.SyncContext, c *models.Conflict, entity *models.Entity, typ models.OpType, payload json.RawMessage) error {
	op := s.newOperation(sc, c, typ, payload)
	if err := validation.ValidateOperation(op); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResolution, err)
	}

	if err := s.dropPending(ctx, c.EntityID); err != nil {
		return err
	}

	// Удалённая запись уже на сервере, даже если локально не применялась
	entity.Confirm(s.remoteOperation(c))
	entity.ApplyOperation(op)
	if entity.ServerSeq < c.RemoteSeq {
		entity.ServerSeq = c.RemoteSeq
	}

	if err := s.store.ApplyLocal(ctx, op, entity); err != nil {
		return fmt.Errorf("failed to store resolution: %w", err)
	}
	return nil
}

// keepRemote принимает удалённое состояние. Если локальные операции уже
// были подтверждены сервером после удалённой, удалённое состояние
// записывается новой операцией, иначе на сервере останется локальное.
func (s *service) keepRemote(ctx context.Context, sc *models.SyncContext, c *models.Conflict, entity *models.Entity) error {
	acked, err := s.anyAcked(ctx, c.LocalOpIDs)
	if err != nil {
		return err
	}

	if acked {
		typ := models.OpUpdate
		if c.RemoteType == models.OpDelete {
			typ = models.OpDelete
		}
		return s.rewrite(ctx, sc, c, entity, typ, c.RemotePayload)
	}

	if err := s.dropPending(ctx, c.EntityID); err != nil {
		return err
	}

	remote := s.remoteOperation(c)
	entity.ApplyOperation(remote)
	entity.Confirm(remote)
	if err := s.store.SaveEntity(ctx, entity); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

// anyAcked возвращает true, если хоть одна из операций уже не в очереди.
// Операция, которой нет в журнале, была подтверждена и удалена prune.
func (s *service) anyAcked(ctx context.Context, ids []string) (bool, error) {
	for _, id := range ids {
		op, err := s.store.GetOperation(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrOperationNotFound) {
				return true, nil
			}
			return false, fmt.Errorf("failed to get operation: %w", err)
		}
		if op.Synced {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) dropPending(ctx context.Context, entityID string) error {
	ops, err := s.store.EntityOperations(ctx, entityID)
	if err != nil {
		return fmt.Errorf("failed to get entity operations: %w", err)
	}

	var ids []string
	for _, op := range ops {
		if op.Pending() {
			ids = append(ids, op.ID)
		}
	}
	if err := s.store.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove pending operations: %w", err)
	}
	return nil
}

// remoteOperation восстанавливает удалённую запись из конфликта
func (s *service) remoteOperation(c *models.Conflict) *models.Operation {
	return &models.Operation{
		ID:              c.RemoteOpID,
		DeviceID:        c.RemoteDeviceID,
		Type:            c.RemoteType,
		EntityKind:      c.EntityKind,
		EntityID:        c.EntityID,
		Payload:         c.RemotePayload,
		ClientTimestamp: s.clock.Now(),
		ServerSeq:       c.RemoteSeq,
		Synced:          true,
	}
}

func (s *service) newOperation(sc *models.SyncContext, c *models.Conflict, typ models.OpType, payload json.RawMessage) *models.Operation {
	if typ == models.OpDelete {
		payload = nil
	}
	return &models.Operation{
		ID:              s.newID(),
		DeviceID:        sc.DeviceID,
		UserID:          s.cfg.UserID,
		Type:            typ,
		EntityKind:      c.EntityKind,
		EntityID:        c.EntityID,
		Payload:         payload,
		ClientTimestamp: s.clock.Now(),
		BaseSeq:         max(sc.ServerSeq, c.RemoteSeq),
	}
}
