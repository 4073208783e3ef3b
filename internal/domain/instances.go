package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActiveInboundConnector: активный executable в ответах API.
type ActiveInboundConnector struct {
	ExecutableID        uuid.UUID         `json:"executableId"`
	Type                string            `json:"type"`
	TenantID            string            `json:"tenantId"`
	Elements            []ProcessElement  `json:"elements"`
	Data                map[string]string `json:"data,omitempty"`
	Health              Health            `json:"health"`
	ActivationTimestamp int64             `json:"activationTimestamp"`
}

// ActivatedAt возвращает время активации.
func (a ActiveInboundConnector) ActivatedAt() time.Time {
	return time.UnixMilli(a.ActivationTimestamp)
}

// ConnectorInstances: активные executables одного типа коннектора.
type ConnectorInstances struct {
	ConnectorID   string                   `json:"connectorId"`
	ConnectorName string                   `json:"connectorName"`
	Instances     []ActiveInboundConnector `json:"instances"`
}

// executableNamespace: пространство имён для UUIDv5 executable ID.
var executableNamespace = uuid.MustParse("6f1c3c9e-6a0b-4c53-9f2a-1d7f0c8e4b21")

// ExecutableID возвращает стабильный ID executable для deduplication ID.
//
// Одинаковый deduplication ID даёт одинаковый executable ID во всех
// экземплярах runtime, что позволяет сливать их отчёты.
func ExecutableID(deduplicationID string) uuid.UUID {
	return uuid.NewSHA1(executableNamespace, []byte(deduplicationID))
}
