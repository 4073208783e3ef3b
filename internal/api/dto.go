package api

import (
	"github.com/shaiso/Connectors/internal/connector"
)

// OutboundConnectorResponse: outbound коннектор в ответе API.
type OutboundConnectorResponse struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	InputVariables []string `json:"inputVariables"`
	TimeoutMs      int64    `json:"timeout,omitempty"`
}

// OutboundFromDefinition конвертирует connector.OutboundDefinition в ответ.
func OutboundFromDefinition(def connector.OutboundDefinition) OutboundConnectorResponse {
	vars := def.InputVariables
	if vars == nil {
		vars = []string{}
	}
	return OutboundConnectorResponse{
		Name:           def.Name,
		Type:           def.Type,
		InputVariables: vars,
		TimeoutMs:      def.Timeout.Milliseconds(),
	}
}

// MessageBody: тело ответа webhook с текстом ошибки.
type MessageBody struct {
	Message string `json:"message"`
}

// ExpressionErrorBody: ответ webhook при ошибке вычисления выражения.
type ExpressionErrorBody struct {
	Reason     string `json:"reason"`
	Expression string `json:"expression"`
}

// ConnectorErrorBody: ответ webhook при ошибке коннектора.
type ConnectorErrorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}
