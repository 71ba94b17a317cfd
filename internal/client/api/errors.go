package api

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError ошибка транспорта: сервер недоступен, таймаут, обрыв соединения
type NetworkError struct {
	Err error
	Op  string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError сервер ответил кодом вне 2xx
type StatusError struct {
	Op         string
	Code       string // Code поле error из тела ответа
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server error (%d): %s: %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: server error (%d): %s", e.Op, e.StatusCode, e.Code)
}

// IsAuth сообщает, что сервер отклонил учётные данные.
// Такие ошибки не повторяются автоматически.
func IsAuth(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}

// IsTooLarge сообщает, что сервер отклонил запрос из-за размера.
// Тот же запрос повторять бесполезно, батч нужно делить.
func IsTooLarge(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusRequestEntityTooLarge
	}
	return false
}

// IsTransient сообщает, что запрос можно повторить позже.
// Отказ всего батча (4xx кроме auth и 413, 5xx) тоже считается временным:
// операции остаются в очереди и отправляются повторно.
func IsTransient(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return !IsAuth(err) && !IsTooLarge(err)
	}
	return false
}
