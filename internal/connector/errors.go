package connector

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrConnectorNotFound: тип коннектора не зарегистрирован.
	ErrConnectorNotFound = errors.New("connector type not found")

	// ErrInvalidConfig: свойства или переменные не соответствуют модели коннектора.
	ErrInvalidConfig = errors.New("invalid connector config")
)

// InputError: ошибка валидации входных данных.
// Задание с такой ошибкой не повторяется.
type InputError struct {
	Err error
}

// NewInputError создаёт InputError из форматированного сообщения.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Err: fmt.Errorf(format, args...)}
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return "invalid input"
	}
	return e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Error: ошибка выполнения коннектора.
//
// Code доступен в errorExpression как error.code, Variables - как error.variables.
type Error struct {
	Code      string
	Message   string
	Variables map[string]any
	Err       error
}

// NewError создаёт Error с кодом.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError оборачивает ошибку вендорского клиента.
func WrapError(code string, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryError: ошибка, которая переопределяет retries и backoff задания.
type RetryError struct {
	Code    string
	Message string
	Retries *int
	Backoff *time.Duration
	Err     error
}

func (e *RetryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "retryable connector error"
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// WebhookError: webhook должен ответить StatusCode.
type WebhookError struct {
	StatusCode int
	Message    string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook error %d: %s", e.StatusCode, e.Message)
}

// SecurityReason: причина отказа проверки безопасности webhook.
type SecurityReason string

const (
	ReasonInvalidSignature   SecurityReason = "INVALID_SIGNATURE"
	ReasonInvalidCredentials SecurityReason = "INVALID_CREDENTIALS"
	ReasonForbidden          SecurityReason = "FORBIDDEN"
	ReasonInvalidToken       SecurityReason = "INVALID_TOKEN"
)

// DefaultStatus возвращает HTTP статус для причины.
func (r SecurityReason) DefaultStatus() int {
	if r == ReasonForbidden {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// SecurityError: запрос не прошёл проверку подписи или аутентификацию.
// Тело ответа для таких ошибок не отправляется.
type SecurityError struct {
	StatusCode int
	Reason     SecurityReason
	Message    string
}

// NewSecurityError создаёт SecurityError со статусом по умолчанию для reason.
func NewSecurityError(reason SecurityReason, message string) *SecurityError {
	return &SecurityError{StatusCode: reason.DefaultStatus(), Reason: reason, Message: message}
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// IsInputError проверяет, является ли err (или его причина) InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
