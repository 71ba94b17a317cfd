package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const refSeparator = ":"

// RefFields возвращает поля payload, которые ссылаются на другие сущности,
// и вид сущности, на которую указывает каждое поле.
func (k EntityKind) RefFields() map[string]EntityKind {
	switch k {
	case KindSubdocument:
		return map[string]EntityKind{"projectId": KindProject}
	case KindMeasurement:
		return map[string]EntityKind{
			"projectId":     KindProject,
			"subdocumentId": KindSubdocument,
		}
	case KindStatement:
		return map[string]EntityKind{"projectId": KindProject}
	case KindAttachment:
		return map[string]EntityKind{"projectId": KindProject}
	default:
		return nil
	}
}

// EntityRef собирает каноническую ссылку kind:id
func EntityRef(kind EntityKind, id string) string {
	return string(kind) + refSeparator + id
}

// NormalizeRef приводит ссылку к канонической форме kind:id.
// Принимает короткую форму ("P1") и префиксную ("project:P1").
// Префикс другого известного вида считается ошибкой.
func NormalizeRef(kind EntityKind, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty %s reference", ErrMalformedReference, kind)
	}

	prefix, rest, found := strings.Cut(ref, refSeparator)
	if found {
		if p := EntityKind(prefix); p.Valid() {
			if p != kind {
				return "", fmt.Errorf("%w: %q is not a %s reference", ErrMalformedReference, ref, kind)
			}
			if rest == "" {
				return "", fmt.Errorf("%w: %q has no id", ErrMalformedReference, ref)
			}
			return ref, nil
		}
	}

	return EntityRef(kind, ref), nil
}

// SplitRef разбирает каноническую ссылку на вид и короткий id
func SplitRef(ref string) (EntityKind, string, error) {
	prefix, id, found := strings.Cut(ref, refSeparator)
	if !found || id == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}
	kind := EntityKind(prefix)
	if !kind.Valid() {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownEntityKind, prefix)
	}
	return kind, id, nil
}

// NormalizePayloadRefs приводит ссылочные поля payload к канонической форме.
// Пустой payload и null возвращаются как есть. Payload должен быть JSON объектом.
func NormalizePayloadRefs(kind EntityKind, payload json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return payload, nil
	}

	fields := kind.RefFields()
	if len(fields) == 0 {
		return payload, nil
	}

	doc, err := DecodePayload(trimmed)
	if err != nil {
		return nil, err
	}

	changed := false
	for field, target := range fields {
		raw, ok := doc[field]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: field %s must be a string", ErrMalformedReference, field)
		}
		norm, err := NormalizeRef(target, s)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		if norm != s {
			doc[field] = norm
			changed = true
		}
	}

	if !changed {
		return payload, nil
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return out, nil
}

// DecodePayload разбирает payload в JSON объект, сохраняя числа как json.Number
func DecodePayload(payload json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("payload is not a JSON object")
	}
	return doc, nil
}
