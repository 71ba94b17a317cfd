package conflict

import (
	"fmt"

	"github.com/iudanet/opsync/internal/models"
)

// Decision итог сравнения удалённой записи с локальной историей сущности
type Decision int

const (
	// Apply удалённая запись новее, применяется к сущности
	Apply Decision = iota
	// SkipStale сущность уже содержит эту или более позднюю запись
	SkipStale
	// KeepLocal локальная операция сериализуется позже и побеждает (LWW)
	KeepLocal
	// Flag расхождение по критическому полю, нужна запись о конфликте
	Flag
)

func (d Decision) String() string {
	switch d {
	case Apply:
		return "apply"
	case SkipStale:
		return "skip_stale"
	case KeepLocal:
		return "keep_local"
	case Flag:
		return "conflict"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Outcome результат Decide
type Outcome struct {
	Concurrent []*models.Operation // Concurrent локальные операции, параллельные удалённой
	Fields     []string            // Fields расходящиеся критические поля (для Flag)
	Decision   Decision
}

// Resolver определяет, как поступить с удалённой записью.
// Бизнес-решений не принимает: только обнаружение и LWW.
type Resolver struct {
	policy *Policy
}

// NewResolver создает resolver с заданной политикой
func NewResolver(policy *Policy) *Resolver {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Resolver{policy: policy}
}

// Policy возвращает политику критических полей
func (r *Resolver) Policy() *Policy {
	return r.policy
}

// Concurrent отбирает локальные операции, сделанные без знания о remote
// и сериализованные (или ещё не сериализованные) после неё.
// Такие операции обнаруживает только более поздний писатель, поэтому
// при параллельной записи конфликт фиксируется ровно на одном устройстве.
func Concurrent(local []*models.Operation, remote *models.Operation) []*models.Operation {
	var out []*models.Operation
	for _, op := range local {
		if op.ID == remote.ID || op.EntityID != remote.EntityID {
			continue
		}
		if op.BaseSeq >= remote.ServerSeq {
			continue
		}
		if op.Pending() || op.ServerSeq > remote.ServerSeq {
			out = append(out, op)
		}
	}
	return out
}

// Decide сравнивает удалённую запись с локальной сущностью и операциями
// из журнала для той же сущности. entity может быть nil.
func (r *Resolver) Decide(entity *models.Entity, local []*models.Operation, remote *models.Operation) (Outcome, error) {
	concurrent := Concurrent(local, remote)
	if len(concurrent) == 0 {
		if entity != nil && remote.ServerSeq <= entity.ServerSeq {
			return Outcome{Decision: SkipStale}, nil
		}
		return Outcome{Decision: Apply}, nil
	}

	latest := concurrent[0]
	for _, op := range concurrent[1:] {
		if op.IsNewerThan(latest) {
			latest = op
		}
	}

	localSide := Side{Payload: latest.Payload, Deleted: latest.Type == models.OpDelete}
	remoteSide := Side{Payload: remote.Payload, Deleted: remote.Type == models.OpDelete}

	fields, diverge, err := r.policy.Diverging(remote.EntityKind, localSide, remoteSide)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to compare %s: %w", remote.EntityID, err)
	}

	if diverge {
		return Outcome{Decision: Flag, Fields: fields, Concurrent: concurrent}, nil
	}
	return Outcome{Decision: KeepLocal, Concurrent: concurrent}, nil
}
