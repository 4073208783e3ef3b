package expression

import (
	"errors"
	"fmt"
)

var (
	// ErrEvaluation: выражение не удалось разобрать или вычислить.
	ErrEvaluation = errors.New("expression evaluation failed")

	// ErrUnexpectedType: результат выражения имеет неожиданный тип.
	ErrUnexpectedType = errors.New("unexpected expression result type")
)

// Error: ошибка вычисления с текстом выражения.
type Error struct {
	Expression string // исходное выражение
	Reason     string // описание ошибки
	Err        error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	return fmt.Sprintf("failed to evaluate expression '%s': %s", e.Expression, e.Reason)
}

// Unwrap возвращает базовую ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет проверять errors.Is(err, ErrEvaluation).
func (e *Error) Is(target error) bool {
	return target == ErrEvaluation
}

func newError(expr string, err error) *Error {
	return &Error{Expression: expr, Reason: err.Error(), Err: err}
}
