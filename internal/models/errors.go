package models

import "errors"

var (
	// ErrUnknownEntityKind вид сущности не входит в закрытое множество
	ErrUnknownEntityKind = errors.New("unknown entity kind")

	// ErrMalformedReference ссылка не приводится к форме kind:id
	ErrMalformedReference = errors.New("malformed reference")
)
