package inbound

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
)

// executable: состояние одного активированного (или неудачно активированного) executable.
type executable struct {
	id          uuid.UUID
	def         connector.InboundDefinition
	impl        connector.InboundExecutable
	activatedAt time.Time
	logs        *activityLog

	// cancel останавливает контекст, переданный в Activate.
	cancel context.CancelFunc

	mu          sync.RWMutex
	state       domain.ExecutableState
	health      domain.Health
	webhookPath string
}

func newExecutable(def connector.InboundDefinition, logSize int) *executable {
	return &executable{
		id:          def.ExecutableID,
		def:         def,
		activatedAt: time.Now(),
		logs:        newActivityLog(logSize),
		health:      domain.Unknown(),
	}
}

func (e *executable) setState(state domain.ExecutableState, health domain.Health) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.health = health
}

func (e *executable) setHealth(h domain.Health) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.health = h
}

func (e *executable) setWebhookPath(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.webhookPath = path
}

func (e *executable) webhook() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.webhookPath
}

func (e *executable) snapshot() (domain.ExecutableState, domain.Health) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state, e.health
}

// view возвращает представление executable для API.
func (e *executable) view() domain.ActiveInboundConnector {
	_, health := e.snapshot()
	data := e.def.RawProperties()
	// Значения свойств могут содержать ссылки на секреты и выражения,
	// наружу отдаём только безопасные служебные данные.
	out := make(map[string]string)
	if path := e.webhook(); path != "" {
		out[propWebhookContext] = path
	}
	if v := data[domain.KeyDeduplicationMode]; v != "" {
		out[domain.KeyDeduplicationMode] = v
	}
	return domain.ActiveInboundConnector{
		ExecutableID:        e.id,
		Type:                e.def.Type,
		TenantID:            e.def.TenantID,
		Elements:            e.def.ProcessElements(),
		Data:                out,
		Health:              health,
		ActivationTimestamp: e.activatedAt.UnixMilli(),
	}
}

// inboundContext: реализация connector.InboundContext для executable.
type inboundContext struct {
	ex         *executable
	registry   *Registry
	properties map[string]any
}

var _ connector.InboundContext = (*inboundContext)(nil)

func (c *inboundContext) Properties() map[string]any {
	return c.properties
}

func (c *inboundContext) BindProperties(dst any) error {
	return connector.Bind(c.properties, dst)
}

func (c *inboundContext) Definition() connector.InboundDefinition {
	return c.ex.def
}

func (c *inboundContext) Correlate(ctx context.Context, req connector.CorrelationRequest) domain.CorrelationResult {
	result := c.registry.correlation.Correlate(ctx, c.ex.def.Elements, req.Variables, req.MessageID)
	if f, ok := result.(*domain.CorrelationFailure); ok {
		c.Log(domain.NewActivity(domain.SeverityWarning, "correlation", f.Error()))
	} else {
		c.Log(domain.NewActivity(domain.SeverityInfo, "correlation", resultLabel(result)))
	}
	return result
}

func (c *inboundContext) CanActivate(variables any) domain.ActivationCheck {
	return c.registry.correlation.CanActivate(c.ex.def.Elements, variables)
}

func (c *inboundContext) ReportHealth(h domain.Health) {
	c.ex.setHealth(h)
}

func (c *inboundContext) Log(a domain.Activity) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	c.ex.logs.add(a)
}

func (c *inboundContext) Cancel(err error) {
	c.registry.cancelExecutable(c.ex.id, err)
}
