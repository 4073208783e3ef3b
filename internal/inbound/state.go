package inbound

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
)

// StateStore хранит текущий набор inbound групп и вычисляет изменения.
//
// На вход подаются все известные версии процессов; активной остаётся
// только последняя версия каждого процесса (по тенанту и bpmnProcessId).
type StateStore struct {
	connectors *connector.Registry

	mu     sync.Mutex
	active map[uuid.UUID]group
}

// group: элементы с одним deduplication ID.
type group struct {
	def connector.InboundDefinition
	err error
}

// NewStateStore создаёт пустой StateStore.
// connectors используется для получения DeduplicationProperties типа (может быть nil).
func NewStateStore(connectors *connector.Registry) *StateStore {
	return &StateStore{
		connectors: connectors,
		active:     make(map[uuid.UUID]group),
	}
}

// Update принимает новый набор определений и возвращает события:
// сначала деактивации, затем активации. Изменённая группа даёт пару событий.
func (s *StateStore) Update(defs []domain.ProcessDefinition) []Event {
	next := s.group(latestVersions(defs))

	s.mu.Lock()
	defer s.mu.Unlock()

	var deactivated, activated []Event
	for id, old := range s.active {
		cur, ok := next[id]
		if ok && sameGroup(old, cur) {
			continue
		}
		deactivated = append(deactivated, Event{Kind: EventDeactivated, Definition: old.def})
	}
	for id, cur := range next {
		old, ok := s.active[id]
		if ok && sameGroup(old, cur) {
			continue
		}
		activated = append(activated, Event{Kind: EventActivated, Definition: cur.def, Err: cur.err})
	}
	s.active = next

	sortEvents(deactivated)
	sortEvents(activated)
	return append(deactivated, activated...)
}

// Definitions возвращает текущие группы.
func (s *StateStore) Definitions() []connector.InboundDefinition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]connector.InboundDefinition, 0, len(s.active))
	for _, g := range s.active {
		out = append(out, g.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeduplicationID < out[j].DeduplicationID })
	return out
}

func (s *StateStore) group(defs []domain.ProcessDefinition) map[uuid.UUID]group {
	out := make(map[uuid.UUID]group)

	for _, def := range defs {
		for _, el := range def.Elements {
			dedupID, err := s.deduplicationID(el)
			if err != nil {
				// Некорректный элемент получает собственную группу
				dedupID = fmt.Sprintf("%s-%s-%s", el.TenantID, el.ProcessDefinitionKey, el.ElementID)
			}

			id := domain.ExecutableID(dedupID)
			g, ok := out[id]
			if !ok {
				g = group{def: connector.InboundDefinition{
					ExecutableID:    id,
					Type:            el.Type(),
					TenantID:        el.TenantID,
					DeduplicationID: dedupID,
				}}
			}
			if err != nil {
				g.err = err
			} else if g.def.Type != el.Type() {
				g.err = fmt.Errorf("%w: elements with deduplication ID %s have different types %s and %s",
					domain.ErrInvalidDefinition, dedupID, g.def.Type, el.Type())
			}
			g.def.Elements = append(g.def.Elements, el)
			out[id] = g
		}
	}

	for id, g := range out {
		sort.Slice(g.def.Elements, func(i, j int) bool {
			a, b := g.def.Elements[i], g.def.Elements[j]
			if a.BpmnProcessID != b.BpmnProcessID {
				return a.BpmnProcessID < b.BpmnProcessID
			}
			return a.ElementID < b.ElementID
		})
		out[id] = g
	}
	return out
}

func (s *StateStore) deduplicationID(el domain.InboundElement) (string, error) {
	if err := el.Validate(); err != nil {
		return "", err
	}
	var scope []string
	if s.connectors != nil {
		if reg, err := s.connectors.Inbound(el.Type()); err == nil {
			scope = reg.DeduplicationProperties
		}
	}
	return el.DeduplicationID(scope)
}

// latestVersions оставляет последнюю версию каждого процесса.
func latestVersions(defs []domain.ProcessDefinition) []domain.ProcessDefinition {
	latest := make(map[string]domain.ProcessDefinition)
	for _, def := range defs {
		def.Elements = append([]domain.InboundElement(nil), def.Elements...)
		def.Normalize()
		key := def.TenantID + "/" + def.BpmnProcessID
		if cur, ok := latest[key]; !ok || def.Version > cur.Version {
			latest[key] = def
		}
	}

	out := make([]domain.ProcessDefinition, 0, len(latest))
	for _, def := range latest {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TenantID != out[j].TenantID {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].BpmnProcessID < out[j].BpmnProcessID
	})
	return out
}

// sameGroup сравнивает группы вместе со свойствами элементов.
func sameGroup(a, b group) bool {
	if (a.err == nil) != (b.err == nil) {
		return false
	}
	if a.err != nil && a.err.Error() != b.err.Error() {
		return false
	}
	return bytes.Equal(fingerprint(a.def), fingerprint(b.def))
}

func fingerprint(def connector.InboundDefinition) []byte {
	type element struct {
		domain.InboundElement
		Props map[string]string `json:"props"`
	}
	elements := make([]element, len(def.Elements))
	for i, el := range def.Elements {
		elements[i] = element{InboundElement: el, Props: el.Properties}
	}
	// json.Marshal сортирует ключи map, поэтому результат детерминирован
	b, _ := json.Marshal(struct {
		Type     string    `json:"type"`
		Elements []element `json:"elements"`
	}{def.Type, elements})
	return b
}

func sortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		return events[i].Definition.DeduplicationID < events[j].Definition.DeduplicationID
	})
}
