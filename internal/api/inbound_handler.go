package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/inbound"
)

// ListInstances возвращает executables, сгруппированные по типу коннектора.
// GET /inbound-instances
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances := h.inbound.Instances()
	if instances == nil {
		instances = []domain.ConnectorInstances{}
	}
	Success(w, instances)
}

// GetInstances возвращает executables одного типа.
// GET /inbound-instances/{type}
func (h *Handler) GetInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.inbound.InstancesByType(r.PathValue("type"))
	if HandleRegistryError(w, h.logger, err) {
		return
	}
	Success(w, instances)
}

// GetLogs возвращает журнал активности executable.
// GET /inbound-instances/{type}/executables/{id}/logs
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid executable id")
		return
	}

	logs, err := h.inbound.Logs(r.PathValue("type"), id)
	if HandleRegistryError(w, h.logger, err) {
		return
	}
	if logs == nil {
		logs = []domain.Activity{}
	}
	Success(w, logs)
}

// QueryInbound возвращает активные executables по фильтру.
// GET /inbound?type=&bpmnProcessId=&elementId=&tenantId=
func (h *Handler) QueryInbound(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active := h.inbound.Query(inbound.Query{
		Type:          q.Get("type"),
		BpmnProcessID: q.Get("bpmnProcessId"),
		ElementID:     q.Get("elementId"),
		TenantID:      q.Get("tenantId"),
	})
	if active == nil {
		active = []domain.ActiveInboundConnector{}
	}
	Success(w, active)
}

// ListOutbound возвращает зарегистрированные outbound коннекторы.
// GET /outbound-connectors
func (h *Handler) ListOutbound(w http.ResponseWriter, r *http.Request) {
	defs := h.connectors.OutboundDefinitions()
	out := make([]OutboundConnectorResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, OutboundFromDefinition(def))
	}
	Success(w, out)
}

// Healthz отвечает 200, пока процесс жив.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	Success(w, map[string]string{"status": "ok"})
}
