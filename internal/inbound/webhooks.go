package inbound

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/connector"
)

// propWebhookContext: свойство с путём webhook.
const propWebhookContext = "inbound.context"

// WebhookTarget: активный webhook executable и его контекст.
type WebhookTarget struct {
	ExecutableID uuid.UUID
	Executable   connector.WebhookExecutable
	Context      connector.InboundContext
	Definition   connector.InboundDefinition
}

// webhookRegistry: соответствие webhook контекста executable.
type webhookRegistry struct {
	mu      sync.RWMutex
	targets map[string]WebhookTarget
}

func newWebhookRegistry() *webhookRegistry {
	return &webhookRegistry{targets: make(map[string]WebhookTarget)}
}

// available проверяет, что контекст свободен или уже принадлежит executable id.
func (w *webhookRegistry) available(path string, id uuid.UUID) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if existing, ok := w.targets[path]; ok && existing.ExecutableID != id {
		return fmt.Errorf("%w: %q is used by executable %s", ErrContextInUse, path, existing.ExecutableID)
	}
	return nil
}

// register занимает контекст. Повторная регистрация того же executable разрешена.
func (w *webhookRegistry) register(path string, target WebhookTarget) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.targets[path]; ok && existing.ExecutableID != target.ExecutableID {
		return fmt.Errorf("%w: %q is used by executable %s", ErrContextInUse, path, existing.ExecutableID)
	}
	w.targets[path] = target
	return nil
}

// deregister освобождает контекст, только если он принадлежит executable id.
func (w *webhookRegistry) deregister(path string, id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.targets[path]; ok && existing.ExecutableID == id {
		delete(w.targets, path)
	}
}

func (w *webhookRegistry) get(path string) (WebhookTarget, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.targets[path]
	return t, ok
}

// normalizeContext убирает слэши по краям: "/orders/" и "orders" - один контекст.
func normalizeContext(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}
