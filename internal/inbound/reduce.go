package inbound

import (
	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/domain"
)

// ReduceInstances сливает отчёты двух экземпляров runtime.
//
// Группировка по типу коннектора, затем по executable ID. Из двух записей
// одного executable остаётся запись с более важным статусом (DOWN > UNKNOWN > UP),
// при равенстве - запись из a. Записи, присутствующие только в одном
// аргументе, сохраняются. Порядок - порядок первого появления.
func ReduceInstances(a, b []domain.ConnectorInstances) []domain.ConnectorInstances {
	var out []domain.ConnectorInstances
	index := make(map[string]int)

	for _, list := range [][]domain.ConnectorInstances{a, b} {
		for _, ci := range list {
			i, ok := index[ci.ConnectorID]
			if !ok {
				index[ci.ConnectorID] = len(out)
				out = append(out, domain.ConnectorInstances{
					ConnectorID:   ci.ConnectorID,
					ConnectorName: ci.ConnectorName,
					Instances:     reduceExecutables(nil, ci.Instances),
				})
				continue
			}
			if out[i].ConnectorName == "" {
				out[i].ConnectorName = ci.ConnectorName
			}
			out[i].Instances = reduceExecutables(out[i].Instances, ci.Instances)
		}
	}
	return out
}

// ReduceAll сворачивает отчёты любого числа экземпляров слева направо.
func ReduceAll(reports ...[]domain.ConnectorInstances) []domain.ConnectorInstances {
	var out []domain.ConnectorInstances
	for _, r := range reports {
		out = ReduceInstances(out, r)
	}
	return out
}

func reduceExecutables(a, b []domain.ActiveInboundConnector) []domain.ActiveInboundConnector {
	out := make([]domain.ActiveInboundConnector, 0, len(a)+len(b))
	index := make(map[uuid.UUID]int, len(a)+len(b))

	for _, list := range [][]domain.ActiveInboundConnector{a, b} {
		for _, ex := range list {
			i, ok := index[ex.ExecutableID]
			if !ok {
				index[ex.ExecutableID] = len(out)
				out = append(out, ex)
				continue
			}
			if ex.Health.Status.Priority() > out[i].Health.Status.Priority() {
				out[i] = ex
			}
		}
	}
	return out
}
