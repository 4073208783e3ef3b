package connector

import "context"

// WebhookExecutable: inbound коннектор, принимающий HTTP запросы.
type WebhookExecutable interface {
	InboundExecutable

	// TriggerWebhook проверяет и разбирает запрос.
	// Корреляцию выполняет runtime по возвращённому результату.
	TriggerWebhook(ctx context.Context, payload WebhookPayload) (*WebhookResult, error)
}

// Verifier: webhook, поддерживающий handshake (challenge) запросы.
//
// Непустой ответ Verify возвращается клиенту без корреляции.
type Verifier interface {
	Verify(ctx context.Context, payload WebhookPayload) (*WebhookHTTPResponse, error)
}

// WebhookPayload: входящий HTTP запрос.
type WebhookPayload struct {
	RequestURL string              `json:"requestURL"`
	Method     string              `json:"method"`
	Headers    map[string]string   `json:"headers"`
	Params     map[string]string   `json:"params"`
	RawBody    []byte              `json:"-"`
	MultiQuery map[string][]string `json:"-"`
}

// MappedRequest: разобранный запрос, доступный в выражениях как request.
type MappedRequest struct {
	Body    any               `json:"body"`
	Headers map[string]string `json:"headers"`
	Params  map[string]string `json:"params"`
}

// WebhookResult: результат TriggerWebhook.
type WebhookResult struct {
	Request MappedRequest `json:"request"`

	// ConnectorData: дополнительные данные коннектора (connectorData в выражениях).
	ConnectorData map[string]any `json:"connectorData,omitempty"`

	// Response формирует HTTP ответ после корреляции. Может быть nil.
	Response func(rc WebhookResultContext) (*WebhookHTTPResponse, error) `json:"-"`
}

// WebhookResultContext: данные для формирования ответа webhook.
type WebhookResultContext struct {
	Request       MappedRequest  `json:"request"`
	ConnectorData map[string]any `json:"connectorData,omitempty"`
	Correlation   any            `json:"correlation,omitempty"`
}

// WebhookHTTPResponse: ответ webhook клиенту.
type WebhookHTTPResponse struct {
	Body       any               `json:"body,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"statusCode,omitempty"`
}
