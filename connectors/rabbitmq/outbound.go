package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/expression"
	"github.com/shaiso/Connectors/internal/mq"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// OutboundType: тип outbound задания.
const OutboundType = "io.camunda:connector-rabbitmq:1"

// Request: переменные outbound задания.
type Request struct {
	Authentication Authentication `json:"authentication"`
	Routing        Routing        `json:"routing"`
	Message        Message        `json:"message"`
}

// Routing: адрес брокера и маршрут сообщения.
type Routing struct {
	Connection
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routingKey"`
}

// Message: публикуемое сообщение.
type Message struct {
	// Body: строка публикуется как есть, остальное сериализуется в JSON.
	Body any `json:"body"`

	// Properties: свойства AMQP (contentType, headers, messageId и т.д.).
	Properties map[string]any `json:"properties"`
}

// Validate проверяет запрос.
func (r *Request) Validate() error {
	if err := r.Authentication.validate(r.Routing.Connection); err != nil {
		return err
	}
	if r.Routing.RoutingKey == "" && r.Routing.Exchange == "" {
		return errors.New("routing.exchange or routing.routingKey is required")
	}
	if r.Message.Body == nil {
		return errors.New("message.body is required")
	}
	return nil
}

// Result: ответ outbound коннектора.
type Result struct {
	StatusResult string `json:"statusResult"`
}

// Sender публикует одно сообщение на брокер по URI.
type Sender interface {
	Send(ctx context.Context, uri, exchange, routingKey string, msg amqp.Publishing) error
}

// DialSender открывает соединение на каждую публикацию.
type DialSender struct {
	Logger *slog.Logger
}

// Send подключается, публикует и закрывает соединение.
func (s DialSender) Send(ctx context.Context, uri, exchange, routingKey string, msg amqp.Publishing) error {
	conn, err := mq.Dial(mq.Config{URL: uri, Logger: s.Logger})
	if err != nil {
		return err
	}
	defer conn.Close()
	return mq.NewPublisher(conn, s.Logger).Publish(ctx, exchange, routingKey, msg)
}

// Function: outbound коннектор.
type Function struct {
	sender Sender
	logger *slog.Logger
}

var _ connector.OutboundFunction = (*Function)(nil)

// NewFunction создаёт Function. nil sender означает DialSender.
func NewFunction(sender Sender, logger *slog.Logger) *Function {
	logger = telemetry.OrDefault(logger)
	if sender == nil {
		sender = DialSender{Logger: logger}
	}
	return &Function{sender: sender, logger: logger}
}

// Definition возвращает описание outbound коннектора.
func Definition() connector.OutboundDefinition {
	return connector.OutboundDefinition{
		Name:           "RabbitMQ",
		Type:           OutboundType,
		InputVariables: []string{"authentication", "routing", "message"},
		Timeout:        30 * time.Second,
	}
}

// Execute публикует сообщение.
func (f *Function) Execute(ctx context.Context, oc connector.OutboundContext) (any, error) {
	var req Request
	if err := oc.BindVariables(&req); err != nil {
		return nil, err
	}

	msg, err := publishing(req.Message)
	if err != nil {
		return nil, err
	}

	uri := req.Authentication.uri(req.Routing.Connection)
	if err := f.sender.Send(ctx, uri, req.Routing.Exchange, req.Routing.RoutingKey, msg); err != nil {
		return nil, connector.WrapError("RABBITMQ_PUBLISH_FAILED", err)
	}

	f.logger.Debug("rabbitmq message published",
		"job_key", oc.Job().Key,
		"exchange", req.Routing.Exchange,
		"routing_key", req.Routing.RoutingKey,
	)
	return Result{StatusResult: "success"}, nil
}

// publishing собирает amqp.Publishing из сообщения.
func publishing(m Message) (amqp.Publishing, error) {
	var out amqp.Publishing

	switch body := m.Body.(type) {
	case string:
		out.Body = []byte(body)
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return out, connector.NewInputError("message.body: %v", err)
		}
		out.Body = b
		out.ContentType = "application/json"
	}

	p := m.Properties
	if ct := str(p["contentType"]); ct != "" {
		out.ContentType = ct
	}
	out.ContentEncoding = str(p["contentEncoding"])
	out.CorrelationId = str(p["correlationId"])
	out.ReplyTo = str(p["replyTo"])
	out.Expiration = str(p["expiration"])
	out.MessageId = str(p["messageId"])
	out.Type = str(p["type"])
	out.UserId = str(p["userId"])
	out.AppId = str(p["appId"])

	if headers, ok := p["headers"].(map[string]any); ok {
		out.Headers = mq.Table(headers)
	}

	if dm, ok := expression.Number(p["deliveryMode"]); ok {
		out.DeliveryMode = uint8(dm)
	} else if dm, ok := p["deliveryMode"].(string); ok {
		if strings.EqualFold(dm, "persistent") || dm == "2" {
			out.DeliveryMode = amqp.Persistent
		}
	}
	if prio, ok := expression.Number(p["priority"]); ok {
		if prio < 0 || prio > 9 {
			return out, connector.NewInputError("message.properties.priority must be between 0 and 9, got %v", prio)
		}
		out.Priority = uint8(prio)
	}
	if ts, ok := p["timestamp"].(string); ok && ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return out, connector.NewInputError("message.properties.timestamp: %v", err)
		}
		out.Timestamp = t
	}

	if out.MessageId == "" {
		out.MessageId = uuid.NewString()
	}
	return out, nil
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
