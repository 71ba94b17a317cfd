package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/conflict"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/wire"
)

// Pull retrieves records after the watermark page by page.
// Records are applied strictly in serverSeq order; the watermark and the
// server time are persisted after every page.
func (s *service) Pull(ctx context.Context, sc *models.SyncContext, userID string) (*PullResult, error) {
	result := &PullResult{}

	for {
		data, err := s.api.Pull(ctx, sc.ServerSeq, sc.DeviceID, s.cfg.PullLimit)
		if err != nil {
			return result, classify("pull", err)
		}

		ops := make([]*models.Operation, 0, len(data.Operations))
		for _, in := range data.Operations {
			rec := wire.FromServerOperation(in)
			ops = append(ops, &rec.Operation)
		}
		sort.SliceStable(ops, func(i, j int) bool { return ops[i].ServerSeq < ops[j].ServerSeq })

		last := sc.ServerSeq
		for _, op := range ops {
			if op.ServerSeq <= last {
				return result, fmt.Errorf("%w: seq %d after %d", ErrOutOfOrder, op.ServerSeq, last)
			}
			last = op.ServerSeq
		}

		for _, op := range ops {
			if err := s.applyRemote(ctx, sc, userID, op, result); err != nil {
				return result, err
			}
			s.clock.Observe(op.ClientTimestamp)
		}

		next := *sc
		next.ServerSeq = last
		if data.ServerTime > 0 {
			next.LastSyncTimestamp = data.ServerTime
		}
		if err := s.store.SaveSyncContext(ctx, &next); err != nil {
			return result, fmt.Errorf("failed to save sync context: %w", err)
		}
		*sc = next

		if !data.HasMore || len(ops) == 0 {
			break
		}
	}

	return result, nil
}

// applyRemote применяет одну серверную запись к хранилищу сущностей
func (s *service) applyRemote(ctx context.Context, sc *models.SyncContext, userID string, remote *models.Operation, result *PullResult) error {
	log := s.logger.With("op_id", remote.ID, "entity_id", remote.EntityID, "server_seq", remote.ServerSeq)

	if remote.DeviceID == sc.DeviceID {
		result.Echoes++
		return s.applyEcho(ctx, remote)
	}

	if userID != "" && remote.UserID != userID {
		log.Warn("Skipping record of another user", "record_user_id", remote.UserID)
		result.Skipped++
		return nil
	}

	if !remote.Type.Valid() || !remote.EntityKind.Valid() {
		log.Warn("Skipping malformed record", "type", remote.Type, "kind", remote.EntityKind)
		result.Skipped++
		return nil
	}

	if remote.Type != models.OpDelete {
		payload, err := models.NormalizePayloadRefs(remote.EntityKind, remote.Payload)
		if err != nil {
			log.Warn("Skipping record with malformed payload", "error", err)
			result.Skipped++
			return nil
		}
		remote.Payload = payload
	}

	existing, err := s.store.GetConflict(ctx, remote.EntityID)
	switch {
	case err == nil && existing.Open():
		refreshRemote(existing, remote)
		if err := s.store.SaveConflict(ctx, existing); err != nil {
			return fmt.Errorf("failed to update conflict: %w", err)
		}
		log.Debug("Entity in conflict, remote side refreshed")
		result.Deferred++
		return nil
	case err != nil && !errors.Is(err, storage.ErrConflictNotFound):
		return fmt.Errorf("failed to get conflict: %w", err)
	}

	entity, err := s.store.GetEntity(ctx, remote.EntityID)
	if err != nil {
		if !errors.Is(err, storage.ErrEntityNotFound) {
			return fmt.Errorf("failed to get entity: %w", err)
		}
		entity = nil
	}

	local, err := s.store.EntityOperations(ctx, remote.EntityID)
	if err != nil {
		return fmt.Errorf("failed to get entity operations: %w", err)
	}

	outcome, err := s.resolver.Decide(entity, local, remote)
	if err != nil {
		log.Warn("Skipping record that cannot be compared", "error", err)
		result.Skipped++
		return nil
	}

	switch outcome.Decision {
	case conflict.Apply:
		if entity == nil {
			entity = &models.Entity{}
		}
		entity.ApplyOperation(remote)
		entity.Confirm(remote)
		if err := s.store.SaveEntity(ctx, entity); err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		log.Debug("Applied remote operation", "type", remote.Type)
		result.Applied++

	case conflict.SkipStale:
		log.Debug("Skipping stale record")
		result.Skipped++

	case conflict.KeepLocal:
		// Локальная операция сериализуется позже и перезапишет запись на сервере.
		// Проекция не меняется, но запись становится подтверждённым состоянием.
		if entity != nil {
			entity.Confirm(remote)
			if err := s.store.SaveEntity(ctx, entity); err != nil {
				return fmt.Errorf("failed to save entity: %w", err)
			}
		}
		log.Debug("Local operation wins", "local_ops", len(outcome.Concurrent))
		result.KeptLocal++

	case conflict.Flag:
		c := newConflict(remote, outcome, s.now())
		if err := s.store.SaveConflict(ctx, c); err != nil {
			return fmt.Errorf("failed to save conflict: %w", err)
		}
		log.Warn("Conflict detected", "fields", outcome.Fields, "local_ops", c.LocalOpIDs)
		result.Conflicts++
	}

	return nil
}

// applyEcho подтверждает собственную операцию, вернувшуюся с сервера.
// Ответ на push мог потеряться, поэтому операция отмечается синхронизированной здесь.
func (s *service) applyEcho(ctx context.Context, remote *models.Operation) error {
	if err := s.store.MarkSynced(ctx, []models.Ack{{OpID: remote.ID, ServerSeq: remote.ServerSeq}}, s.now()); err != nil {
		return fmt.Errorf("failed to mark echo synced: %w", err)
	}

	entity, err := s.store.GetEntity(ctx, remote.EntityID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get entity: %w", err)
	}

	entity.Confirm(remote)
	if entity.LastOpID == remote.ID && entity.ServerSeq < remote.ServerSeq {
		entity.ServerSeq = remote.ServerSeq
	}
	if err := s.store.SaveEntity(ctx, entity); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

func newConflict(remote *models.Operation, outcome conflict.Outcome, now time.Time) *models.Conflict {
	latest := outcome.Concurrent[0]
	ids := make([]string, 0, len(outcome.Concurrent))
	for _, op := range outcome.Concurrent {
		ids = append(ids, op.ID)
		if op.IsNewerThan(latest) {
			latest = op
		}
	}

	c := &models.Conflict{
		DetectedAt:   now.UTC(),
		EntityKind:   remote.EntityKind,
		EntityID:     remote.EntityID,
		State:        models.ConflictDetected,
		Fields:       outcome.Fields,
		LocalOpIDs:   ids,
		LocalPayload: latest.Payload,
		LocalDeleted: latest.Type == models.OpDelete,
	}
	refreshRemote(c, remote)
	return c
}

// refreshRemote переносит в конфликт самое новое удалённое состояние
func refreshRemote(c *models.Conflict, remote *models.Operation) {
	c.RemoteOpID = remote.ID
	c.RemoteDeviceID = remote.DeviceID
	c.RemoteType = remote.Type
	c.RemotePayload = remote.Payload
	c.RemoteSeq = remote.ServerSeq
}
