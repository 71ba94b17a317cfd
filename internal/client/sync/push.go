package sync

import (
	"context"
	"errors"
	"fmt"

	httpClient "github.com/iudanet/opsync/internal/client/api"
	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/wire"
	"github.com/iudanet/opsync/pkg/api"
)

// Push drains the operation log.
// 1. Pending operations of the user, oldest first
// 2. Batches of BatchSize sent to /sync/push
// 3. Acked operations marked synced, permanently rejected removed
// Transport failure aborts remaining batches and leaves the log untouched.
func (s *service) Push(ctx context.Context, sc *models.SyncContext, userID string) (*PushResult, error) {
	result := &PushResult{}

	pending, err := s.store.Pending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending operations: %w", err)
	}
	if len(pending) == 0 {
		return result, nil
	}

	// Операции сущностей с открытым конфликтом ждут разрешения
	ops, err := s.withoutConflicts(ctx, pending)
	if err != nil {
		return nil, err
	}
	result.Held = len(pending) - len(ops)

	s.logger.Debug("Pushing operations", "count", len(ops), "held", result.Held)

	for start := 0; start < len(ops); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(ops))
		if err := s.pushBatch(ctx, sc.DeviceID, ops[start:end], result); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (s *service) pushBatch(ctx context.Context, deviceID string, batch []*models.Operation, result *PushResult) error {
	req := api.PushRequest{
		DeviceID:   deviceID,
		Operations: make([]api.Operation, 0, len(batch)),
	}
	for _, op := range batch {
		req.Operations = append(req.Operations, wire.ToOperation(op))
	}

	resp, err := s.api.Push(ctx, req)
	if err != nil {
		if httpClient.IsTooLarge(err) {
			return s.splitBatch(ctx, deviceID, batch, result, err)
		}
		return classify("push", err)
	}

	acks := make([]models.Ack, 0, len(resp.AckOps))
	for _, id := range resp.AckOps {
		acks = append(acks, models.Ack{OpID: id, ServerSeq: resp.Assigned[id]})
	}
	if err := s.store.MarkSynced(ctx, acks, s.now()); err != nil {
		return fmt.Errorf("failed to mark operations synced: %w", err)
	}
	result.Pushed += len(acks)

	byID := make(map[string]*models.Operation, len(batch))
	for _, op := range batch {
		byID[op.ID] = op
	}

	var rejected []*models.Operation
	for _, f := range resp.Failed {
		class := models.ErrorClass(f.Error)
		if !class.Permanent() {
			s.logger.Debug("Operation deferred by server", "op_id", f.OpID, "error", f.Error)
			result.Failed++
			continue
		}
		s.logger.Warn("Dropping rejected operation",
			"op_id", f.OpID,
			"error", f.Error,
			"message", f.Message)
		if op, ok := byID[f.OpID]; ok {
			rejected = append(rejected, op)
		}
	}

	return s.discard(ctx, rejected, result)
}

// splitBatch делит отклонённый по размеру батч пополам.
// Одиночная операция, которая не проходит по размеру, отбрасывается как невалидная.
func (s *service) splitBatch(ctx context.Context, deviceID string, batch []*models.Operation, result *PushResult, cause error) error {
	if len(batch) == 1 {
		s.logger.Warn("Dropping operation too large for server",
			"op_id", batch[0].ID,
			"entity_id", batch[0].EntityID,
			"error", cause)
		return s.discard(ctx, batch, result)
	}

	mid := len(batch) / 2
	s.logger.Debug("Push batch too large, splitting", "size", len(batch))
	if err := s.pushBatch(ctx, deviceID, batch[:mid], result); err != nil {
		return err
	}
	return s.pushBatch(ctx, deviceID, batch[mid:], result)
}

// discard удаляет навсегда отклонённые операции и откатывает их сущности
func (s *service) discard(ctx context.Context, rejected []*models.Operation, result *PushResult) error {
	if len(rejected) == 0 {
		return nil
	}

	ids := make([]string, 0, len(rejected))
	touched := make(map[string]struct{}, len(rejected))
	for _, op := range rejected {
		ids = append(ids, op.ID)
		touched[op.EntityID] = struct{}{}
	}
	if err := s.store.Remove(ctx, ids); err != nil {
		return fmt.Errorf("failed to remove rejected operations: %w", err)
	}
	result.Discarded += len(ids)

	for entityID := range touched {
		if err := s.rollback(ctx, entityID); err != nil {
			return err
		}
	}
	return nil
}

// rollback пересобирает сущность после удаления отклонённых операций:
// подтверждённое сервером состояние плюс оставшиеся операции журнала.
// Сущность, которую сервер ни разу не принял, удаляется.
func (s *service) rollback(ctx context.Context, entityID string) error {
	entity, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get entity: %w", err)
	}

	ops, err := s.store.EntityOperations(ctx, entityID)
	if err != nil {
		return fmt.Errorf("failed to get entity operations: %w", err)
	}

	rebuilt := entity.Rebuild(ops)
	if rebuilt == nil {
		s.logger.Warn("Removing entity never accepted by server", "entity_id", entityID)
		if err := s.store.DeleteEntity(ctx, entityID); err != nil {
			return fmt.Errorf("failed to delete entity: %w", err)
		}
		return nil
	}

	s.logger.Debug("Entity rolled back", "entity_id", entityID, "last_op_id", rebuilt.LastOpID)
	if err := s.store.SaveEntity(ctx, rebuilt); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	return nil
}

func (s *service) withoutConflicts(ctx context.Context, ops []*models.Operation) ([]*models.Operation, error) {
	conflicts, err := s.store.ListConflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		return ops, nil
	}

	held := make(map[string]struct{}, len(conflicts))
	for _, c := range conflicts {
		held[c.EntityID] = struct{}{}
	}

	out := make([]*models.Operation, 0, len(ops))
	for _, op := range ops {
		if _, ok := held[op.EntityID]; ok {
			continue
		}
		out = append(out, op)
	}
	return out, nil
}
