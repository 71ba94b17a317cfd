package conflict

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/iudanet/opsync/internal/models"
)

// Policy хранит набор критических полей для каждого вида сущности.
// Расхождение по критическому полю не разрешается автоматически.
type Policy struct {
	critical map[models.EntityKind][]string
}

// DefaultCriticalFields критические поля по умолчанию
func DefaultCriticalFields() map[models.EntityKind][]string {
	return map[models.EntityKind][]string{
		models.KindProject:     {"status", "budget"},
		models.KindSubdocument: {"status"},
		models.KindMeasurement: {"quantity", "unit"},
		models.KindStatement:   {"total", "status", "currency"},
		models.KindAttachment:  nil,
	}
}

// DefaultPolicy создает политику с критическими полями по умолчанию
func DefaultPolicy() *Policy {
	return &Policy{critical: DefaultCriticalFields()}
}

// NewPolicy создает политику, заменяя значения по умолчанию
// для видов, перечисленных в overrides. Ключи overrides: имена видов.
func NewPolicy(overrides map[string][]string) (*Policy, error) {
	p := DefaultPolicy()
	for name, fields := range overrides {
		kind, err := models.ParseEntityKind(name)
		if err != nil {
			return nil, fmt.Errorf("invalid critical fields config: %w", err)
		}
		p.critical[kind] = slices.Clone(fields)
	}
	return p, nil
}

// CriticalFields возвращает критические поля вида
func (p *Policy) CriticalFields(kind models.EntityKind) []string {
	return p.critical[kind]
}

// Side одна сторона сравнения: payload и признак удаления
type Side struct {
	Payload json.RawMessage
	Deleted bool
}

// Diverging возвращает критические поля, значения которых различаются
// между сторонами. Удаление против живой сущности считается расхождением
// даже для вида без критических полей.
func (p *Policy) Diverging(kind models.EntityKind, local, remote Side) ([]string, bool, error) {
	if local.Deleted || remote.Deleted {
		if local.Deleted != remote.Deleted {
			return nil, true, nil
		}
		return nil, false, nil
	}

	fields := p.critical[kind]
	if len(fields) == 0 {
		return nil, false, nil
	}

	localDoc, err := decodeSide(local.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("local payload: %w", err)
	}
	remoteDoc, err := decodeSide(remote.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("remote payload: %w", err)
	}

	var diff []string
	for _, f := range fields {
		lv, lok := localDoc[f]
		rv, rok := remoteDoc[f]
		if lok != rok || !valuesEqual(lv, rv) {
			diff = append(diff, f)
		}
	}

	return diff, len(diff) > 0, nil
}

func decodeSide(payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 || string(payload) == "null" {
		return map[string]any{}, nil
	}
	return models.DecodePayload(payload)
}

// valuesEqual сравнивает JSON значения; числа сравниваются численно,
// чтобы 12.5 и 12.50 не считались расхождением.
func valuesEqual(a, b any) bool {
	an, aok := a.(json.Number)
	bn, bok := b.(json.Number)
	if aok && bok {
		if an == bn {
			return true
		}
		af, aerr := strconv.ParseFloat(string(an), 64)
		bf, berr := strconv.ParseFloat(string(bn), 64)
		return aerr == nil && berr == nil && af == bf
	}
	return reflect.DeepEqual(a, b)
}
