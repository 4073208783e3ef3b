package connector

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/domain"
)

// InboundExecutable: inbound коннектор.
//
// Activate вызывается один раз для группы элементов с одним deduplication ID
// и не должен блокироваться: долгую работу коннектор запускает в горутине
// и останавливает в Deactivate.
type InboundExecutable interface {
	Activate(ctx context.Context, ic InboundContext) error
	Deactivate(ctx context.Context) error
}

// CorrelationRequest: событие для корреляции.
type CorrelationRequest struct {
	// Variables: данные события (контекст выражений).
	Variables any

	// MessageID: идентификатор для дедупликации сообщений в engine.
	MessageID string
}

// InboundContext: связь inbound коннектора с runtime.
type InboundContext interface {
	// Properties возвращает свойства коннектора с подставленными секретами.
	Properties() map[string]any

	// BindProperties декодирует свойства в dst и валидирует результат.
	BindProperties(dst any) error

	// Definition возвращает определение executable.
	Definition() InboundDefinition

	// Correlate коррелирует событие с процессом.
	Correlate(ctx context.Context, req CorrelationRequest) domain.CorrelationResult

	// CanActivate проверяет activation condition без корреляции.
	CanActivate(variables any) domain.ActivationCheck

	// ReportHealth обновляет состояние executable.
	ReportHealth(h domain.Health)

	// Log добавляет запись в журнал активности.
	Log(a domain.Activity)

	// Cancel сообщает runtime, что коннектор не может продолжать работу.
	Cancel(err error)
}

// InboundDefinition: группа элементов, обслуживаемых одним executable.
type InboundDefinition struct {
	ExecutableID    uuid.UUID               `json:"executableId"`
	Type            string                  `json:"type"`
	TenantID        string                  `json:"tenantId"`
	DeduplicationID string                  `json:"deduplicationId"`
	Elements        []domain.InboundElement `json:"elements"`
}

// RawProperties возвращает свойства первого элемента.
// Элементы одной группы имеют совпадающие свойства коннектора.
func (d InboundDefinition) RawProperties() map[string]string {
	if len(d.Elements) == 0 {
		return map[string]string{}
	}
	return d.Elements[0].Properties
}

// ProcessElements возвращает координаты элементов.
func (d InboundDefinition) ProcessElements() []domain.ProcessElement {
	out := make([]domain.ProcessElement, 0, len(d.Elements))
	for _, el := range d.Elements {
		out = append(out, el.ProcessElement)
	}
	return out
}

// InboundRegistration описывает inbound коннектор в реестре.
type InboundRegistration struct {
	// Type: значение inbound.type.
	Type string `json:"type"`

	// Name: человекочитаемое имя.
	Name string `json:"name"`

	// DeduplicationProperties: свойства для deduplicationMode=AUTO.
	DeduplicationProperties []string `json:"deduplicationProperties,omitempty"`

	// Factory создаёт новый экземпляр для каждой активации.
	Factory func() InboundExecutable `json:"-"`
}
