package domain

import "errors"

var (
	// ErrMissingType: у элемента нет свойства inbound.type.
	ErrMissingType = errors.New("missing connector type property, the connector element template is not valid")

	// ErrInvalidDefinition: определение inbound коннектора некорректно.
	ErrInvalidDefinition = errors.New("invalid inbound connector definition")

	// ErrInvalidDuration: строка не является ISO-8601 длительностью.
	ErrInvalidDuration = errors.New("invalid ISO-8601 duration")
)
