package validation

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"

	"github.com/iudanet/opsync/internal/models"
)

// IDPattern определяет допустимый формат идентификаторов операций и устройств:
// латинские буквы, цифры, '-', '_' и '.'; длина 1-128 символов
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

const (
	// MaxPayloadSize максимальный размер payload одной операции
	MaxPayloadSize = 1 << 20
)

// Error ошибка валидации с классом, который определяет судьбу операции на клиенте
type Error struct {
	Class   models.ErrorClass
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

func invalid(format string, args ...any) error {
	return &Error{Class: models.ErrorClassValidation, Message: fmt.Sprintf(format, args...)}
}

func badReference(err error) error {
	return &Error{Class: models.ErrorClassReference, Message: err.Error()}
}

// ClassOf возвращает класс ошибки валидации; для прочих ошибок validation
func ClassOf(err error) models.ErrorClass {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Class
	}
	return models.ErrorClassValidation
}

// ValidateID проверяет идентификатор операции или устройства
func ValidateID(name, id string) error {
	if id == "" {
		return invalid("%s cannot be empty", name)
	}
	if !IDPattern.MatchString(id) {
		return invalid("%s %q has invalid format", name, id)
	}
	return nil
}

// ValidateOperation проверяет операцию перед приёмом в серверный журнал.
// Ссылки в payload должны быть уже в канонической форме или приводиться к ней.
func ValidateOperation(op *models.Operation) error {
	if err := ValidateID("operation id", op.ID); err != nil {
		return err
	}
	if err := ValidateID("device id", op.DeviceID); err != nil {
		return err
	}

	if !op.Type.Valid() {
		return invalid("unknown operation type %q", op.Type)
	}
	if !op.EntityKind.Valid() {
		return invalid("unknown entity kind %q", op.EntityKind)
	}

	kind, _, err := models.SplitRef(op.EntityID)
	if err != nil {
		return badReference(err)
	}
	if kind != op.EntityKind {
		return badReference(fmt.Errorf("%w: entity id %q does not match kind %s",
			models.ErrMalformedReference, op.EntityID, op.EntityKind))
	}

	if op.ClientTimestamp <= 0 {
		return invalid("client timestamp must be positive")
	}

	switch op.Type {
	case models.OpCreate, models.OpUpdate:
		payload := bytes.TrimSpace(op.Payload)
		if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
			return invalid("%s requires a payload", op.Type)
		}
		if len(payload) > MaxPayloadSize {
			return invalid("payload exceeds %d bytes", MaxPayloadSize)
		}
		if _, err := models.DecodePayload(payload); err != nil {
			return invalid("%v", err)
		}
		if _, err := models.NormalizePayloadRefs(op.EntityKind, payload); err != nil {
			return badReference(err)
		}
	case models.OpDelete:
		// payload у DELETE игнорируется
	}

	return nil
}
