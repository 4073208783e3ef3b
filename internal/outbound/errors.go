package outbound

import "errors"

var (
	// ErrInvalidBackoff: заголовок retryBackoff не является ISO-8601 длительностью.
	ErrInvalidBackoff = errors.New("invalid retry backoff")

	// ErrInvalidErrorExpression: errorExpression вернуло объект неизвестного вида.
	ErrInvalidErrorExpression = errors.New("invalid error expression result")

	// ErrWorkerStopped: воркер остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
