package http

import (
	"context"
	"time"

	"github.com/shaiso/Connectors/internal/connector"
)

// Function: outbound REST коннектор.
type Function struct {
	client *Client
}

var _ connector.OutboundFunction = (*Function)(nil)

// NewFunction создаёт Function поверх client.
func NewFunction(client *Client) *Function {
	return &Function{client: client}
}

// Definition возвращает описание коннектора.
func Definition() connector.OutboundDefinition {
	return connector.OutboundDefinition{
		Name: "REST",
		Type: Type,
		InputVariables: []string{
			"method", "url", "headers", "queryParameters", "body",
			"authentication", "connectionTimeoutInSeconds",
		},
		Timeout: 5 * time.Minute,
	}
}

// Execute выполняет запрос из переменных задания.
func (f *Function) Execute(ctx context.Context, oc connector.OutboundContext) (any, error) {
	var req Request
	if err := oc.BindVariables(&req); err != nil {
		return nil, err
	}
	resp, err := f.client.Do(ctx, &req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
