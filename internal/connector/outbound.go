package connector

import (
	"context"
	"time"
)

// OutboundFunction: outbound коннектор.
//
// Execute вызывается для каждого задания соответствующего типа.
// Возвращаемое значение становится результатом (response) коннектора;
// ошибки оборачиваются в InputError, Error или RetryError.
type OutboundFunction interface {
	Execute(ctx context.Context, oc OutboundContext) (any, error)
}

// OutboundFunc: адаптер функции к OutboundFunction.
type OutboundFunc func(ctx context.Context, oc OutboundContext) (any, error)

// Execute вызывает f.
func (f OutboundFunc) Execute(ctx context.Context, oc OutboundContext) (any, error) {
	return f(ctx, oc)
}

// OutboundContext: данные задания для коннектора.
type OutboundContext interface {
	// Variables возвращает переменные задания с подставленными секретами.
	Variables() map[string]any

	// BindVariables декодирует переменные в dst и валидирует результат.
	BindVariables(dst any) error

	// Job возвращает метаданные задания.
	Job() JobContext
}

// JobContext: метаданные задания.
type JobContext struct {
	Key                string
	Type               string
	TenantID           string
	BpmnProcessID      string
	ProcessInstanceKey string
	ElementID          string
	Retries            int
	CustomHeaders      map[string]string
}

// OutboundDefinition описывает outbound коннектор.
type OutboundDefinition struct {
	// Name: человекочитаемое имя.
	Name string `json:"name"`

	// Type: тип задания, на который подписывается воркер.
	Type string `json:"type"`

	// InputVariables: переменные, которые нужно запросить у engine.
	// Пусто - запросить все.
	InputVariables []string `json:"inputVariables,omitempty"`

	// Timeout: максимальное время выполнения Execute.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// SimpleOutboundContext: OutboundContext поверх готовых переменных.
// Используется runtime и тестами коннекторов.
type SimpleOutboundContext struct {
	Vars    map[string]any
	JobInfo JobContext
}

// Variables возвращает переменные.
func (c *SimpleOutboundContext) Variables() map[string]any {
	return c.Vars
}

// BindVariables декодирует переменные в dst.
func (c *SimpleOutboundContext) BindVariables(dst any) error {
	return Bind(c.Vars, dst)
}

// Job возвращает метаданные задания.
func (c *SimpleOutboundContext) Job() JobContext {
	return c.JobInfo
}
