package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/secrets"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// EventKind: тип события жизненного цикла executable.
type EventKind string

const (
	EventActivated   EventKind = "ACTIVATED"
	EventDeactivated EventKind = "DEACTIVATED"
	eventCancelled   EventKind = "CANCELLED"
)

// Event: событие для Registry.
type Event struct {
	Kind       EventKind
	Definition connector.InboundDefinition

	// Err: определение некорректно (INVALID_DEFINITION) или причина отмены.
	Err error
}

// Query: фильтр активных executables. Пустые поля не фильтруют.
type Query struct {
	Type          string
	BpmnProcessID string
	ElementID     string
	TenantID      string
}

// RegistryConfig: конфигурация Registry.
type RegistryConfig struct {
	Connectors  *connector.Registry
	Correlation *CorrelationHandler

	// Secrets: подстановка секретов в свойства (опционально).
	Secrets *secrets.Handler

	// LogSize: размер журнала активности на executable (default: 10).
	LogSize int

	// QueueSize: ёмкость очереди событий (default: 100).
	QueueSize int

	Logger *slog.Logger
}

// Registry управляет жизненным циклом inbound executables.
//
// События обрабатываются одной горутиной в порядке поступления.
// Чтение состояния (Query, Instances, Webhook) доступно из любых горутин.
type Registry struct {
	connectors  *connector.Registry
	correlation *CorrelationHandler
	secrets     *secrets.Handler
	logSize     int
	logger      *slog.Logger

	events   chan Event
	webhooks *webhookRegistry

	mu          sync.RWMutex
	executables map[uuid.UUID]*executable

	// Lifecycle
	rootCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// NewRegistry создаёт Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	connectors := cfg.Connectors
	if connectors == nil {
		connectors = connector.NewRegistry()
	}

	return &Registry{
		connectors:  connectors,
		correlation: cfg.Correlation,
		secrets:     cfg.Secrets,
		logSize:     cfg.LogSize,
		logger:      telemetry.OrDefault(cfg.Logger),
		events:      make(chan Event, queueSize),
		webhooks:    newWebhookRegistry(),
		executables: make(map[uuid.UUID]*executable),
		rootCtx:     context.Background(),
	}
}

// Start запускает горутину обработки событий.
func (r *Registry) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.rootCtx = ctx
	r.cancelFunc = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case ev := <-r.events:
				r.HandleEvent(ctx, ev)
			case <-ctx.Done():
				return
			}
		}
	}()

	r.logger.Info("inbound registry started")
}

// Stop останавливает обработку событий и деактивирует все executables.
func (r *Registry) Stop(ctx context.Context) {
	r.stoppedMu.Lock()
	r.stopped = true
	r.stoppedMu.Unlock()

	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.wg.Wait()

	r.mu.RLock()
	ids := make([]uuid.UUID, 0, len(r.executables))
	for id := range r.executables {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.deactivate(ctx, id)
	}
	r.logger.Info("inbound registry stopped", "deactivated", len(ids))
}

// Submit ставит событие в очередь обработки.
func (r *Registry) Submit(ctx context.Context, ev Event) error {
	r.stoppedMu.RLock()
	stopped := r.stopped
	r.stoppedMu.RUnlock()
	if stopped {
		return ErrRegistryStopped
	}

	select {
	case r.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleEvent синхронно обрабатывает событие.
// Вызывается горутиной Registry; в тестах допускается прямой вызов.
func (r *Registry) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventActivated:
		r.activate(ctx, ev.Definition, ev.Err)
	case EventDeactivated:
		r.deactivate(ctx, ev.Definition.ExecutableID)
	case eventCancelled:
		r.cancel(ctx, ev.Definition.ExecutableID, ev.Err)
	default:
		r.logger.Warn("unknown inbound event", "kind", ev.Kind)
	}
}

func (r *Registry) activate(ctx context.Context, def connector.InboundDefinition, invalid error) {
	logger := telemetry.WithConnectorType(telemetry.WithExecutableID(r.logger, def.ExecutableID.String()), def.Type)

	// Повторная активация того же ID заменяет executable
	if r.get(def.ExecutableID) != nil {
		r.deactivate(ctx, def.ExecutableID)
	}

	ex := newExecutable(def, r.logSize)
	r.store(ex)

	if invalid != nil {
		r.fail(ex, domain.StateInvalidDefinition, invalid, logger)
		return
	}

	reg, err := r.connectors.Inbound(def.Type)
	if err != nil {
		r.fail(ex, domain.StateNotRegistered, fmt.Errorf("%w: %s", ErrConnectorNotRegistered, def.Type), logger)
		return
	}

	props, err := r.resolveProperties(ctx, def)
	if err != nil {
		r.fail(ex, domain.StateFailedToActivate, err, logger)
		return
	}

	ex.impl = reg.Factory()
	ic := &inboundContext{ex: ex, registry: r, properties: connector.Unflatten(props)}

	// Контекст проверяется до активации, а занимается только после неё:
	// до успешного Activate запросы на webhook не маршрутизируются
	hook, isWebhook := ex.impl.(connector.WebhookExecutable)
	var path string
	if isWebhook {
		path = normalizeContext(props[propWebhookContext])
		if path == "" {
			r.fail(ex, domain.StateInvalidDefinition, fmt.Errorf("%w: missing %s property", domain.ErrInvalidDefinition, propWebhookContext), logger)
			return
		}
		if err := r.webhooks.available(path, ex.id); err != nil {
			r.fail(ex, domain.StateFailedToActivate, err, logger)
			return
		}
	}

	runCtx, cancel := context.WithCancel(r.rootCtx)
	ex.cancel = cancel

	if err := ex.impl.Activate(runCtx, ic); err != nil {
		cancel()
		r.fail(ex, domain.StateFailedToActivate, err, logger)
		return
	}

	if isWebhook {
		target := WebhookTarget{ExecutableID: ex.id, Executable: hook, Context: ic, Definition: def}
		if err := r.webhooks.register(path, target); err != nil {
			cancel()
			if derr := ex.impl.Deactivate(ctx); derr != nil {
				logger.Warn("inbound executable deactivation failed", "error", derr)
			}
			r.fail(ex, domain.StateFailedToActivate, err, logger)
			return
		}
		ex.setWebhookPath(path)
	}

	_, health := ex.snapshot()
	if health.Status == domain.HealthUnknown {
		health = domain.Up(nil)
	}
	ex.setState(domain.StateActivated, health)
	ex.logs.add(domain.NewActivity(domain.SeverityInfo, "activation", "executable activated"))

	telemetry.InboundActivations.WithLabelValues(telemetry.ActionActivated, def.Type).Inc()
	logger.Info("inbound executable activated",
		"elements", len(def.Elements),
		"webhook", path,
	)
}

// fail фиксирует неудачную активацию: executable остаётся видимым в API со статусом DOWN.
func (r *Registry) fail(ex *executable, state domain.ExecutableState, err error, logger *slog.Logger) {
	ex.setState(state, domain.Down(err))
	ex.logs.add(domain.NewActivity(domain.SeverityError, "activation", err.Error()))
	telemetry.InboundActivations.WithLabelValues(telemetry.ActionFailed, ex.def.Type).Inc()
	logger.Error("inbound executable activation failed", "state", state, "error", err)
}

func (r *Registry) deactivate(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	ex, ok := r.executables[id]
	delete(r.executables, id)
	r.mu.Unlock()
	if !ok {
		return
	}

	r.shutdown(ctx, ex)
	telemetry.InboundActivations.WithLabelValues(telemetry.ActionDeactivated, ex.def.Type).Inc()
	r.logger.Info("inbound executable deactivated", "executable_id", id, "type", ex.def.Type)
}

// cancel обрабатывает отмену, запрошенную самим коннектором.
// Executable остаётся в реестре в состоянии CANCELLED.
func (r *Registry) cancel(ctx context.Context, id uuid.UUID, reason error) {
	ex := r.get(id)
	if ex == nil {
		return
	}
	if state, _ := ex.snapshot(); !state.IsActive() {
		return
	}

	r.shutdown(ctx, ex)
	if reason == nil {
		reason = errors.New("cancelled by connector")
	}
	ex.setState(domain.StateCancelled, domain.Down(reason))
	ex.logs.add(domain.NewActivity(domain.SeverityError, "cancel", reason.Error()))
	r.logger.Warn("inbound executable cancelled", "executable_id", id, "type", ex.def.Type, "error", reason)
}

// cancelExecutable вызывается из горутин коннектора и передаёт отмену в очередь.
func (r *Registry) cancelExecutable(id uuid.UUID, reason error) {
	ex := r.get(id)
	if ex == nil {
		return
	}
	ev := Event{Kind: eventCancelled, Definition: ex.def, Err: reason}
	go func() {
		if err := r.Submit(context.Background(), ev); err != nil {
			r.logger.Debug("cancel event dropped", "executable_id", id, "error", err)
		}
	}()
}

// shutdown освобождает webhook контекст и вызывает Deactivate.
func (r *Registry) shutdown(ctx context.Context, ex *executable) {
	if path := ex.webhook(); path != "" {
		r.webhooks.deregister(path, ex.id)
	}
	if ex.cancel != nil {
		ex.cancel()
	}
	state, _ := ex.snapshot()
	if ex.impl == nil || !state.IsActive() {
		return
	}
	if err := ex.impl.Deactivate(ctx); err != nil {
		r.logger.Warn("inbound executable deactivation failed",
			"executable_id", ex.id,
			"error", err,
		)
	}
}

func (r *Registry) resolveProperties(ctx context.Context, def connector.InboundDefinition) (map[string]string, error) {
	var props map[string]string
	if len(def.Elements) > 0 {
		props = def.Elements[0].ConnectorProperties()
	} else {
		props = map[string]string{}
	}
	if r.secrets == nil {
		return props, nil
	}
	return r.secrets.ReplaceProperties(ctx, props, def.TenantID)
}

func (r *Registry) store(ex *executable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executables[ex.id] = ex
}

func (r *Registry) get(id uuid.UUID) *executable {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.executables[id]
}

// --- Чтение состояния ---

// Webhook возвращает активный webhook executable по контексту.
func (r *Registry) Webhook(path string) (WebhookTarget, bool) {
	return r.webhooks.get(normalizeContext(path))
}

// Query возвращает executables, у которых хотя бы один элемент подходит под фильтр.
func (r *Registry) Query(q Query) []domain.ActiveInboundConnector {
	r.mu.RLock()
	list := make([]*executable, 0, len(r.executables))
	for _, ex := range r.executables {
		list = append(list, ex)
	}
	r.mu.RUnlock()

	var out []domain.ActiveInboundConnector
	for _, ex := range list {
		if q.Type != "" && ex.def.Type != q.Type {
			continue
		}
		if !matchesElements(ex.def.ProcessElements(), q) {
			continue
		}
		out = append(out, ex.view())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ExecutableID.String() < out[j].ExecutableID.String()
	})
	return out
}

func matchesElements(elements []domain.ProcessElement, q Query) bool {
	if q.BpmnProcessID == "" && q.ElementID == "" && q.TenantID == "" {
		return true
	}
	for _, el := range elements {
		if q.BpmnProcessID != "" && el.BpmnProcessID != q.BpmnProcessID {
			continue
		}
		if q.ElementID != "" && el.ElementID != q.ElementID {
			continue
		}
		if q.TenantID != "" && el.TenantID != q.TenantID {
			continue
		}
		return true
	}
	return false
}

// Instances возвращает executables, сгруппированные по типу коннектора.
func (r *Registry) Instances() []domain.ConnectorInstances {
	byType := make(map[string][]domain.ActiveInboundConnector)
	for _, v := range r.Query(Query{}) {
		byType[v.Type] = append(byType[v.Type], v)
	}

	out := make([]domain.ConnectorInstances, 0, len(byType))
	for typ, instances := range byType {
		out = append(out, domain.ConnectorInstances{
			ConnectorID:   typ,
			ConnectorName: r.connectorName(typ),
			Instances:     instances,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectorID < out[j].ConnectorID })
	return out
}

// InstancesByType возвращает executables одного типа.
func (r *Registry) InstancesByType(connectorType string) (domain.ConnectorInstances, error) {
	instances := r.Query(Query{Type: connectorType})
	if len(instances) == 0 {
		return domain.ConnectorInstances{}, fmt.Errorf("%w: no executables of type %s", ErrExecutableNotFound, connectorType)
	}
	return domain.ConnectorInstances{
		ConnectorID:   connectorType,
		ConnectorName: r.connectorName(connectorType),
		Instances:     instances,
	}, nil
}

// Logs возвращает журнал активности executable.
func (r *Registry) Logs(connectorType string, id uuid.UUID) ([]domain.Activity, error) {
	ex := r.get(id)
	if ex == nil || (connectorType != "" && ex.def.Type != connectorType) {
		return nil, fmt.Errorf("%w: %s", ErrExecutableNotFound, id)
	}
	return ex.logs.list(), nil
}

func (r *Registry) connectorName(typ string) string {
	if reg, err := r.connectors.Inbound(typ); err == nil && reg.Name != "" {
		return reg.Name
	}
	return typ
}
