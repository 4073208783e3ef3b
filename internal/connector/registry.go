package connector

import (
	"fmt"
	"sort"
	"sync"
)

// OutboundRegistration: outbound коннектор в реестре.
type OutboundRegistration struct {
	Definition OutboundDefinition
	Function   OutboundFunction
}

// Registry: реестр коннекторов.
//
// Позволяет регистрировать и получать outbound функции и фабрики
// inbound executable по типу. Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	outbound map[string]OutboundRegistration
	inbound  map[string]InboundRegistration
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		outbound: make(map[string]OutboundRegistration),
		inbound:  make(map[string]InboundRegistration),
	}
}

// RegisterOutbound регистрирует outbound коннектор.
// Если коннектор с таким типом уже существует, он будет перезаписан.
func (r *Registry) RegisterOutbound(def OutboundDefinition, fn OutboundFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outbound[def.Type] = OutboundRegistration{Definition: def, Function: fn}
}

// RegisterInbound регистрирует inbound коннектор.
func (r *Registry) RegisterInbound(reg InboundRegistration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbound[reg.Type] = reg
}

// Outbound возвращает outbound коннектор по типу.
// Возвращает ErrConnectorNotFound, если коннектор не найден.
func (r *Registry) Outbound(jobType string) (OutboundRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.outbound[jobType]
	if !ok {
		return OutboundRegistration{}, fmt.Errorf("%w: %s", ErrConnectorNotFound, jobType)
	}
	return reg, nil
}

// Inbound возвращает регистрацию inbound коннектора по типу.
func (r *Registry) Inbound(connectorType string) (InboundRegistration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.inbound[connectorType]
	if !ok {
		return InboundRegistration{}, fmt.Errorf("%w: %s", ErrConnectorNotFound, connectorType)
	}
	return reg, nil
}

// HasInbound проверяет, зарегистрирован ли inbound коннектор.
func (r *Registry) HasInbound(connectorType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.inbound[connectorType]
	return ok
}

// OutboundDefinitions возвращает определения outbound коннекторов, отсортированные по типу.
func (r *Registry) OutboundDefinitions() []OutboundDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]OutboundDefinition, 0, len(r.outbound))
	for _, reg := range r.outbound {
		defs = append(defs, reg.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Type < defs[j].Type })
	return defs
}

// InboundTypes возвращает список зарегистрированных inbound типов.
func (r *Registry) InboundTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.inbound))
	for t := range r.inbound {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// UnregisterOutbound удаляет outbound коннектор из реестра.
func (r *Registry) UnregisterOutbound(jobType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.outbound, jobType)
}
