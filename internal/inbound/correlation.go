package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc/codes"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/engine"
	"github.com/shaiso/Connectors/internal/expression"
	"github.com/shaiso/Connectors/internal/telemetry"
)

const (
	tracerName = "github.com/shaiso/Connectors/internal/inbound"

	// defaultMessageTTL: TTL сообщения, если у элемента не задан messageTtl.
	defaultMessageTTL = time.Hour
)

// Engine: операции движка, которые нужны для корреляции.
// Реализуется *engine.Client.
type Engine interface {
	CreateProcessInstance(ctx context.Context, cmd engine.CreateInstanceCommand) (*engine.ProcessInstance, error)
	PublishMessage(ctx context.Context, cmd engine.PublishMessageCommand) (*engine.PublishedMessage, error)
}

// CorrelationConfig: конфигурация CorrelationHandler.
type CorrelationConfig struct {
	Engine Engine

	// DefaultTTL: TTL сообщений по умолчанию (default: 1h).
	DefaultTTL time.Duration

	Logger *slog.Logger
}

// CorrelationHandler коррелирует inbound события с процессами.
type CorrelationHandler struct {
	engine     Engine
	defaultTTL time.Duration
	logger     *slog.Logger
}

// NewCorrelationHandler создаёт CorrelationHandler.
func NewCorrelationHandler(cfg CorrelationConfig) *CorrelationHandler {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultMessageTTL
	}
	return &CorrelationHandler{
		engine:     cfg.Engine,
		defaultTTL: ttl,
		logger:     telemetry.OrDefault(cfg.Logger),
	}
}

// Correlate выбирает элемент, чьё activation condition выполнено,
// и коррелирует с ним событие.
//
// Ровно один подходящий элемент обязателен: ни одного -
// ACTIVATION_CONDITION_NOT_MET, несколько - INVALID_INPUT.
func (h *CorrelationHandler) Correlate(ctx context.Context, elements []domain.InboundElement, variables any, messageID string) domain.CorrelationResult {
	connectorType := ""
	if len(elements) > 0 {
		connectorType = elements[0].Type()
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "inbound.correlate",
		attribute.String("connector.type", connectorType),
		attribute.Int("elements", len(elements)),
	)
	result := h.correlate(ctx, elements, variables, messageID)

	var failure *domain.CorrelationFailure
	if f, ok := result.(*domain.CorrelationFailure); ok {
		failure = f
		h.logger.Debug("correlation failed",
			"type", connectorType,
			"reason", f.Reason,
			"message", f.Text,
		)
	}
	if failure != nil {
		telemetry.EndSpan(span, failure)
	} else {
		telemetry.EndSpan(span, nil)
	}

	telemetry.InboundCorrelations.WithLabelValues(connectorType, resultLabel(result)).Inc()
	return result
}

func (h *CorrelationHandler) correlate(ctx context.Context, elements []domain.InboundElement, variables any, messageID string) domain.CorrelationResult {
	data, err := expression.Normalize(variables)
	if err != nil {
		return domain.InvalidInput("Failed to read event variables: "+err.Error(), err)
	}

	check := h.CanActivate(elements, data)
	if !check.CanActivate() {
		return check.Failure
	}

	el := *check.Element
	switch el.CorrelationPoint.Kind {
	case domain.CorrelationStartEvent:
		return h.createInstance(ctx, el, data)
	case domain.CorrelationMessage, domain.CorrelationMessageStart:
		return h.publishMessage(ctx, el, data, messageID)
	default:
		return domain.InvalidInput(fmt.Sprintf("Unsupported correlation point %q", el.CorrelationPoint.Kind), nil)
	}
}

// CanActivate вычисляет activation condition каждого элемента.
//
// Если ни один не подошёл, Discard выставляется, когда хотя бы один
// элемент разрешает отбрасывать такие события (consumeUnmatchedEvents).
func (h *CorrelationHandler) CanActivate(elements []domain.InboundElement, variables any) domain.ActivationCheck {
	data, err := expression.Normalize(variables)
	if err != nil {
		return domain.ActivationCheck{Failure: domain.InvalidInput(err.Error(), err)}
	}

	var matched []*domain.InboundElement
	discard := false
	for i := range elements {
		el := &elements[i]
		if el.ConsumeUnmatchedEvents() {
			discard = true
		}
		ok, err := expression.EvaluateCondition(el.ActivationCondition(), data)
		if err != nil {
			return domain.ActivationCheck{Failure: domain.InvalidInput(err.Error(), err)}
		}
		if ok {
			matched = append(matched, el)
		}
	}

	switch len(matched) {
	case 0:
		return domain.ActivationCheck{Failure: domain.ActivationConditionNotMet(discard)}
	case 1:
		return domain.ActivationCheck{Element: matched[0]}
	default:
		ids := make([]string, 0, len(matched))
		for _, el := range matched {
			ids = append(ids, el.ElementID)
		}
		h.logger.Warn("multiple elements matched the same input", "element_ids", strings.Join(ids, ","))
		return domain.ActivationCheck{Failure: domain.InvalidInput(
			"Multiple connectors are activated for the same input",
			ErrMultipleMatches,
		)}
	}
}

func (h *CorrelationHandler) createInstance(ctx context.Context, el domain.InboundElement, data any) domain.CorrelationResult {
	vars, err := extractVariables(el, data)
	if err != nil {
		return domain.InvalidInput(err.Error(), err)
	}
	if vars == nil {
		vars = map[string]any{}
	}

	pi, err := h.engine.CreateProcessInstance(ctx, engine.CreateInstanceCommand{
		BpmnProcessID: el.BpmnProcessID,
		Version:       el.Version,
		TenantID:      el.TenantID,
		Variables:     vars,
	})
	if err != nil {
		return engineFailure(err)
	}

	h.logger.Info("process instance created",
		"bpmn_process_id", el.BpmnProcessID,
		"element_id", el.ElementID,
		"process_instance_key", pi.ProcessInstanceKey,
	)
	return &domain.ProcessInstanceCreated{
		Element:            el.ProcessElement,
		ProcessInstanceKey: pi.ProcessInstanceKey,
		TenantID:           el.TenantID,
	}
}

func (h *CorrelationHandler) publishMessage(ctx context.Context, el domain.InboundElement, data any, messageID string) domain.CorrelationResult {
	correlationKey, failure := h.correlationKey(el, data)
	if failure != nil {
		return failure
	}

	ttl, ok, err := el.MessageTTL()
	if err != nil {
		return domain.InvalidInput(fmt.Sprintf("Invalid messageTtl: %v", err), err)
	}
	if !ok {
		ttl = h.defaultTTL
	}

	if expr := el.MessageIDExpression(); expr != "" {
		messageID, err = expression.EvaluateString(expr, data)
		if err != nil {
			return domain.InvalidInput(err.Error(), err)
		}
	}

	vars, err := extractVariables(el, data)
	if err != nil {
		return domain.InvalidInput(err.Error(), err)
	}

	msg, err := h.engine.PublishMessage(ctx, engine.PublishMessageCommand{
		Name:           el.CorrelationPoint.MessageName,
		CorrelationKey: correlationKey,
		TTL:            ttl,
		MessageID:      messageID,
		TenantID:       el.TenantID,
		Variables:      vars,
	})
	if err != nil {
		var se *engine.StatusError
		if errors.As(err, &se) && se.Code == codes.AlreadyExists {
			h.logger.Info("message already correlated",
				"message_name", el.CorrelationPoint.MessageName,
				"message_id", messageID,
			)
			return &domain.MessageAlreadyCorrelated{Element: el.ProcessElement}
		}
		return engineFailure(err)
	}

	h.logger.Info("message published",
		"message_name", el.CorrelationPoint.MessageName,
		"correlation_key", correlationKey,
		"message_key", msg.MessageKey,
	)
	return &domain.MessagePublished{
		Element:    el.ProcessElement,
		MessageKey: msg.MessageKey,
		TenantID:   el.TenantID,
	}
}

// correlationKey вычисляет ключ корреляции.
// Ошибка вычисления даёт пустой ключ. Для intermediate событий
// (и message start с correlationRequired=required) ключ обязателен.
func (h *CorrelationHandler) correlationKey(el domain.InboundElement, data any) (string, *domain.CorrelationFailure) {
	required := el.CorrelationPoint.Kind == domain.CorrelationMessage || el.CorrelationRequired()
	expr := el.CorrelationKeyExpression()

	key, err := expression.EvaluateString(expr, data)
	if err != nil {
		h.logger.Debug("correlation key expression failed", "element_id", el.ElementID, "error", err)
		key = ""
	}
	if key == "" && required {
		return "", domain.InvalidInput(
			fmt.Sprintf("Wasn't able to obtain correlation key for expression %s", expr), nil)
	}
	return key, nil
}

// extractVariables строит переменные процесса из контекста события.
//
// resultVariable кладёт весь контекст под указанным именем,
// resultExpression вычисляется и сливается поверх. Без обоих - nil.
func extractVariables(el domain.InboundElement, data any) (map[string]any, error) {
	var out map[string]any

	if name := el.ResultVariable(); name != "" {
		out = map[string]any{name: data}
	}

	if expr := el.ResultExpression(); expr != "" {
		mapped, err := expression.EvaluateToMap(expr, data)
		if err != nil {
			return nil, err
		}
		if out == nil && mapped != nil {
			out = make(map[string]any, len(mapped))
		}
		for k, v := range mapped {
			out[k] = v
		}
	}
	return out, nil
}

// engineFailure переводит ошибку движка в результат корреляции.
func engineFailure(err error) *domain.CorrelationFailure {
	var se *engine.StatusError
	if errors.As(err, &se) {
		return domain.EngineStatus(se.Code, se.Error())
	}
	return domain.OtherFailure(err)
}

// resultLabel: значение метки result метрики корреляций.
func resultLabel(r domain.CorrelationResult) string {
	switch v := r.(type) {
	case *domain.ProcessInstanceCreated:
		return "process_instance_created"
	case *domain.MessagePublished:
		return "message_published"
	case *domain.MessageAlreadyCorrelated:
		return "message_already_correlated"
	case *domain.CorrelationFailure:
		return strings.ToLower(string(v.Reason))
	default:
		return "unknown"
	}
}
