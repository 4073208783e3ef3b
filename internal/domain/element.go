package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTenantID: тенант по умолчанию для односоставных инсталляций.
const DefaultTenantID = "<default>"

// CorrelationPointKind: тип BPMN элемента, в который коррелирует событие.
type CorrelationPointKind string

const (
	// CorrelationStartEvent: обычный start event: создаётся новый process instance.
	CorrelationStartEvent CorrelationPointKind = "START_EVENT"

	// CorrelationMessage: intermediate catch, boundary event или receive task.
	// Публикуется сообщение, correlation key обязателен.
	CorrelationMessage CorrelationPointKind = "MESSAGE"

	// CorrelationMessageStart: message start event.
	// Публикуется сообщение, correlation key необязателен.
	CorrelationMessageStart CorrelationPointKind = "MESSAGE_START_EVENT"
)

// CorrelationPoint: куда направляется inbound событие.
type CorrelationPoint struct {
	Kind        CorrelationPointKind `json:"kind" yaml:"kind"`
	MessageName string               `json:"messageName,omitempty" yaml:"messageName,omitempty"`
}

// IsMessage возвращает true для точек, требующих публикации сообщения.
func (c CorrelationPoint) IsMessage() bool {
	return c.Kind == CorrelationMessage || c.Kind == CorrelationMessageStart
}

// ProcessElement: координаты BPMN элемента.
type ProcessElement struct {
	BpmnProcessID        string `json:"bpmnProcessId"`
	Version              int    `json:"version"`
	ProcessDefinitionKey string `json:"processDefinitionKey"`
	ElementID            string `json:"elementId"`
	TenantID             string `json:"tenantId"`
}

// InboundElement: BPMN элемент с inbound коннектором.
//
// Properties содержат сырые значения из модели процесса (включая
// выражения и ссылки на секреты), поэтому не сериализуются.
type InboundElement struct {
	ProcessElement
	CorrelationPoint CorrelationPoint  `json:"correlationPoint"`
	Properties       map[string]string `json:"-"`
}

// Type возвращает тип коннектора или пустую строку.
func (e InboundElement) Type() string {
	return e.Properties[KeyInboundType]
}

// Validate проверяет обязательные свойства.
func (e InboundElement) Validate() error {
	if e.Type() == "" {
		return ErrMissingType
	}
	return nil
}

// ActivationCondition возвращает условие активации (с учётом устаревшего ключа).
func (e InboundElement) ActivationCondition() string {
	if v := e.Properties[KeyActivationCondition]; v != "" {
		return v
	}
	return e.Properties[KeyDeprecatedActivationCondition]
}

// ResultVariable возвращает имя переменной, в которую кладётся весь контекст.
func (e InboundElement) ResultVariable() string {
	return e.Properties[KeyResultVariable]
}

// ResultExpression возвращает выражение маппинга результата.
func (e InboundElement) ResultExpression() string {
	return e.Properties[KeyResultExpression]
}

// CorrelationKeyExpression возвращает выражение ключа корреляции.
func (e InboundElement) CorrelationKeyExpression() string {
	return e.Properties[KeyCorrelationKeyExpr]
}

// MessageIDExpression возвращает выражение идентификатора сообщения.
func (e InboundElement) MessageIDExpression() string {
	return e.Properties[KeyMessageIDExpression]
}

// ConsumeUnmatchedEvents: нужно ли подтверждать события, не прошедшие activation condition.
func (e InboundElement) ConsumeUnmatchedEvents() bool {
	return strings.EqualFold(e.Properties[KeyConsumeUnmatchedEvents], "true")
}

// CorrelationRequired: требует ли message start event ключ корреляции.
func (e InboundElement) CorrelationRequired() bool {
	return strings.EqualFold(e.Properties[KeyCorrelationRequired], "required")
}

// MessageTTL возвращает TTL сообщения из свойства messageTtl.
// ok == false, если свойство не задано.
func (e InboundElement) MessageTTL() (ttl time.Duration, ok bool, err error) {
	raw := strings.TrimSpace(e.Properties[KeyMessageTTL])
	if raw == "" {
		return 0, false, nil
	}
	ttl, err = ParseISODuration(raw)
	if err != nil {
		return 0, false, err
	}
	return ttl, true, nil
}

// ConnectorProperties возвращает свойства без служебных ключей.
func (e InboundElement) ConnectorProperties() map[string]string {
	out := make(map[string]string, len(e.Properties))
	for k, v := range e.Properties {
		if IsKeyword(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// DeduplicationID вычисляет ключ, по которому элементы разных процессов
// объединяются в один executable.
//
// Режимы:
//   - без deduplicationMode: "{tenant}-{processDefinitionKey}-{elementId}";
//   - MANUAL: значение свойства deduplicationId;
//   - AUTO: тенант + хэш свойств из scope (или всех, кроме служебных).
func (e InboundElement) DeduplicationID(scope []string) (string, error) {
	switch DeduplicationMode(e.Properties[KeyDeduplicationMode]) {
	case "":
		return fmt.Sprintf("%s-%s-%s", e.TenantID, e.ProcessDefinitionKey, e.ElementID), nil

	case DeduplicationManual:
		id := e.Properties[KeyDeduplicationID]
		if id == "" {
			return "", fmt.Errorf("%w: missing deduplicationId property, expected a value due to deduplicationMode=MANUAL",
				ErrInvalidDefinition)
		}
		return id, nil

	case DeduplicationAuto:
		return fmt.Sprintf("%s-%s", e.TenantID, e.propertiesHash(scope)), nil

	default:
		return "", fmt.Errorf("%w: unknown deduplicationMode %q", ErrInvalidDefinition, e.Properties[KeyDeduplicationMode])
	}
}

func (e InboundElement) propertiesHash(scope []string) string {
	var keys []string
	if len(scope) > 0 {
		for _, k := range scope {
			if _, ok := e.Properties[k]; ok {
				keys = append(keys, k)
			}
		}
	} else {
		for k := range e.Properties {
			if _, excluded := DeduplicationExcluded[k]; !excluded {
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, e.Properties[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ProcessDefinition: версия процесса с inbound элементами.
type ProcessDefinition struct {
	Key           string           `json:"key"`
	BpmnProcessID string           `json:"bpmnProcessId"`
	Version       int              `json:"version"`
	TenantID      string           `json:"tenantId"`
	Elements      []InboundElement `json:"elements"`
}

// Normalize проставляет элементам координаты процесса.
func (p *ProcessDefinition) Normalize() {
	if p.TenantID == "" {
		p.TenantID = DefaultTenantID
	}
	for i := range p.Elements {
		el := &p.Elements[i]
		el.BpmnProcessID = p.BpmnProcessID
		el.Version = p.Version
		el.ProcessDefinitionKey = p.Key
		el.TenantID = p.TenantID
	}
}
