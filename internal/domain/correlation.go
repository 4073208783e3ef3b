package domain

import (
	"fmt"

	"google.golang.org/grpc/codes"
)

// CorrelationResult: итог корреляции inbound события.
//
// Реализации: *ProcessInstanceCreated, *MessagePublished, *MessageAlreadyCorrelated
// (успех) и *CorrelationFailure (ошибка).
type CorrelationResult interface {
	IsSuccess() bool
}

// ProcessInstanceCreated: по событию создан новый process instance.
type ProcessInstanceCreated struct {
	Element            ProcessElement `json:"element"`
	ProcessInstanceKey string         `json:"processInstanceKey"`
	TenantID           string         `json:"tenantId"`
}

// MessagePublished: сообщение опубликовано в engine.
type MessagePublished struct {
	Element    ProcessElement `json:"element"`
	MessageKey string         `json:"messageKey"`
	TenantID   string         `json:"tenantId"`
}

// MessageAlreadyCorrelated: сообщение с тем же messageId уже было опубликовано.
type MessageAlreadyCorrelated struct {
	Element ProcessElement `json:"element"`
}

func (*ProcessInstanceCreated) IsSuccess() bool   { return true }
func (*MessagePublished) IsSuccess() bool         { return true }
func (*MessageAlreadyCorrelated) IsSuccess() bool { return true }

// FailureReason: причина неудачной корреляции.
type FailureReason string

const (
	// FailureInvalidInput: выражения не вычислились или дали неверный результат.
	FailureInvalidInput FailureReason = "INVALID_INPUT"

	// FailureActivationConditionNotMet: ни один элемент не прошёл activation condition.
	FailureActivationConditionNotMet FailureReason = "ACTIVATION_CONDITION_NOT_MET"

	// FailureEngineStatus: engine ответил ошибочным статусом.
	FailureEngineStatus FailureReason = "ENGINE_STATUS"

	// FailureOther: прочие ошибки (сеть, сериализация).
	FailureOther FailureReason = "OTHER"
)

// HandlingStrategy: что inbound коннектор должен сделать с неудачным событием.
type HandlingStrategy struct {
	// Forward: вернуть ошибку источнику события (иначе проигнорировать).
	Forward bool `json:"forward"`

	// Retryable: источник может повторить доставку.
	Retryable bool `json:"retryable"`
}

// CorrelationFailure: неудачная корреляция.
type CorrelationFailure struct {
	Reason FailureReason `json:"reason"`

	// Text: сообщение для пользователя.
	Text string `json:"message"`

	// Discard: для ACTIVATION_CONDITION_NOT_MET: событие можно подтвердить и отбросить.
	Discard bool `json:"discard,omitempty"`

	// Status: код engine для ENGINE_STATUS.
	Status codes.Code `json:"status,omitempty"`

	// Err: исходная ошибка, если есть.
	Err error `json:"-"`
}

func (*CorrelationFailure) IsSuccess() bool { return false }

// Message возвращает текст ошибки.
func (f *CorrelationFailure) Message() string {
	return f.Text
}

// Error реализует error, чтобы неудачу можно было вернуть как ошибку.
func (f *CorrelationFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Text)
}

// Unwrap возвращает исходную ошибку.
func (f *CorrelationFailure) Unwrap() error {
	return f.Err
}

// Strategy возвращает стратегию обработки неудачи.
func (f *CorrelationFailure) Strategy() HandlingStrategy {
	switch f.Reason {
	case FailureActivationConditionNotMet:
		if f.Discard {
			return HandlingStrategy{}
		}
		return HandlingStrategy{Forward: true}
	case FailureEngineStatus:
		switch f.Status {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
			return HandlingStrategy{Forward: true, Retryable: true}
		}
		return HandlingStrategy{Forward: true}
	case FailureOther:
		return HandlingStrategy{Forward: true, Retryable: true}
	default:
		return HandlingStrategy{Forward: true}
	}
}

// InvalidInput создаёт неудачу INVALID_INPUT.
func InvalidInput(message string, err error) *CorrelationFailure {
	return &CorrelationFailure{Reason: FailureInvalidInput, Text: message, Err: err}
}

// ActivationConditionNotMet создаёт неудачу ACTIVATION_CONDITION_NOT_MET.
func ActivationConditionNotMet(discard bool) *CorrelationFailure {
	return &CorrelationFailure{
		Reason:  FailureActivationConditionNotMet,
		Text:    "Activation condition not met",
		Discard: discard,
	}
}

// EngineStatus создаёт неудачу ENGINE_STATUS.
func EngineStatus(status codes.Code, message string) *CorrelationFailure {
	return &CorrelationFailure{Reason: FailureEngineStatus, Status: status, Text: message}
}

// OtherFailure создаёт неудачу OTHER.
func OtherFailure(err error) *CorrelationFailure {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &CorrelationFailure{Reason: FailureOther, Text: msg, Err: err}
}

// ActivationCheck: результат проверки activation condition без корреляции.
type ActivationCheck struct {
	// Element: единственный подходящий элемент (nil, если не найден).
	Element *InboundElement

	// Failure: причина отказа, если подходящего элемента нет.
	Failure *CorrelationFailure
}

// CanActivate возвращает true, если найден ровно один элемент.
func (c ActivationCheck) CanActivate() bool {
	return c.Element != nil
}
