package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound: запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrLockNotHeld: освобождение блокировки, которой нет.
	ErrLockNotHeld = errors.New("advisory lock not held")
)
