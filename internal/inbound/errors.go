package inbound

import "errors"

// Ошибки inbound runtime.
var (
	// ErrContextInUse: webhook контекст уже занят другим executable.
	ErrContextInUse = errors.New("webhook context already in use")

	// ErrConnectorNotRegistered: тип коннектора отсутствует в реестре.
	ErrConnectorNotRegistered = errors.New("connector not registered")

	// ErrExecutableNotFound: executable с таким ID не активен.
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrRegistryStopped: реестр остановлен и не принимает события.
	ErrRegistryStopped = errors.New("registry stopped")

	// ErrMultipleMatches: событие подходит сразу нескольким элементам.
	ErrMultipleMatches = errors.New("multiple connectors are activated for the same input")
)
