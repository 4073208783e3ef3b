package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/expression"
	"github.com/shaiso/Connectors/internal/mq"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// InboundType: тип inbound коннектора.
const InboundType = "io.camunda:connector-rabbitmq-inbound:1"

// Теги журнала активности.
const (
	tagMessage  = "Message"
	tagConsumer = "Consumer"
)

// InboundProperties: свойства inbound коннектора после Unflatten.
type InboundProperties struct {
	Inbound struct {
		Authentication Authentication `json:"authentication"`
		Routing        Connection     `json:"routing"`
		QueueName      string         `json:"queueName"`
		ConsumerTag    string         `json:"consumerTag"`
		Exclusive      string         `json:"exclusive"`
		Arguments      map[string]any `json:"arguments"`
	} `json:"inbound"`
}

// Validate проверяет свойства.
func (p *InboundProperties) Validate() error {
	in := p.Inbound
	if in.QueueName == "" {
		return errors.New("inbound.queueName is required")
	}
	return in.Authentication.validate(in.Routing)
}

// InboundMessage: сообщение в переменных корреляции.
type InboundMessage struct {
	ConsumerTag string         `json:"consumerTag"`
	Body        any            `json:"body"`
	Properties  map[string]any `json:"properties"`
}

// InboundResult: переменные корреляции.
type InboundResult struct {
	Message InboundMessage `json:"message"`
}

// Executable: inbound consumer.
type Executable struct {
	logger *slog.Logger

	conn   *mq.Connection
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ connector.InboundExecutable = (*Executable)(nil)

// NewExecutable создаёт Executable.
func NewExecutable(logger *slog.Logger) *Executable {
	return &Executable{logger: telemetry.OrDefault(logger)}
}

// Registration возвращает регистрацию inbound коннектора.
func Registration(logger *slog.Logger) connector.InboundRegistration {
	return connector.InboundRegistration{
		Type: InboundType,
		Name: "RabbitMQ Consumer",
		DeduplicationProperties: []string{
			"inbound.authentication.authType",
			"inbound.authentication.uri",
			"inbound.authentication.userName",
			"inbound.routing.hostName",
			"inbound.routing.port",
			"inbound.routing.virtualHost",
			"inbound.queueName",
			"inbound.consumerTag",
		},
		Factory: func() connector.InboundExecutable { return NewExecutable(logger) },
	}
}

// Activate подключается к брокеру и запускает consumer.
func (e *Executable) Activate(ctx context.Context, ic connector.InboundContext) error {
	var props InboundProperties
	if err := ic.BindProperties(&props); err != nil {
		return err
	}
	in := props.Inbound

	conn, err := mq.Dial(mq.Config{
		URL:       in.Authentication.uri(in.Routing),
		Reconnect: true,
		Logger:    e.logger,
	})
	if err != nil {
		return fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	if _, err := mq.CheckQueue(conn, in.QueueName); err != nil {
		conn.Close()
		return err
	}
	e.conn = conn

	consumer := mq.NewConsumer(conn, e.logger, mq.ConsumerConfig{
		Queue:       in.QueueName,
		ConsumerTag: in.ConsumerTag,
		Exclusive:   in.Exclusive == "true",
		Arguments:   mq.Table(in.Arguments),
		Handler: func(ctx context.Context, d amqp.Delivery) mq.Decision {
			return handleDelivery(ctx, ic, d)
		},
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := consumer.Run(runCtx)
		if errors.Is(err, mq.ErrConsumerCancelled) {
			ic.Log(domain.NewActivity(domain.SeverityWarning, tagConsumer, "Consumer cancelled: "+in.ConsumerTag))
			ic.Cancel(err)
		}
	}()

	ic.ReportHealth(domain.Up(map[string]any{"queue": in.QueueName}))
	return nil
}

// Deactivate останавливает consumer и закрывает соединение.
func (e *Executable) Deactivate(context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// handleDelivery коррелирует сообщение и решает, что с ним сделать.
func handleDelivery(ctx context.Context, ic connector.InboundContext, d amqp.Delivery) (decision mq.Decision) {
	ic.Log(domain.NewActivity(domain.SeverityInfo, tagMessage,
		fmt.Sprintf("Received AMQP message with delivery tag %d", d.DeliveryTag)))

	defer func() {
		if r := recover(); r != nil {
			ic.Log(domain.NewActivity(domain.SeverityError, tagMessage, "NACK (requeue) - failed to correlate event"))
			decision = mq.Requeue
		}
	}()

	result := ic.Correlate(ctx, connector.CorrelationRequest{
		Variables: InboundResult{Message: toInboundMessage(d)},
		MessageID: d.MessageId,
	})
	return decide(ic, d.DeliveryTag, result)
}

// decide сопоставляет результат корреляции решению по сообщению.
func decide(ic connector.InboundContext, tag uint64, result domain.CorrelationResult) mq.Decision {
	failure, ok := result.(*domain.CorrelationFailure)
	if !ok {
		ic.Log(domain.NewActivity(domain.SeverityInfo, tagMessage, "Message correlated successfully"))
		return mq.Ack
	}

	msg := fmt.Sprintf("Failed to handle AMQP message with delivery tag %d, reason: %s", tag, failure.Message())
	strategy := failure.Strategy()
	switch {
	case !strategy.Forward:
		ic.Log(domain.NewActivity(domain.SeverityWarning, tagMessage, msg+". Message will be acknowledged."))
		return mq.Ack
	case strategy.Retryable:
		ic.Log(domain.NewActivity(domain.SeverityWarning, tagMessage, msg+". Message will be requeued."))
		return mq.Requeue
	default:
		ic.Log(domain.NewActivity(domain.SeverityWarning, tagMessage, msg+". Message will be dropped."))
		return mq.Reject
	}
}

// toInboundMessage превращает доставку в переменные корреляции.
// JSON тело декодируется, остальное передаётся строкой.
func toInboundMessage(d amqp.Delivery) InboundMessage {
	body, err := expression.DecodeJSON(d.Body)
	if err != nil {
		body = string(d.Body)
	}
	return InboundMessage{
		ConsumerTag: d.ConsumerTag,
		Body:        body,
		Properties:  deliveryProperties(d),
	}
}

func deliveryProperties(d amqp.Delivery) map[string]any {
	out := map[string]any{}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("contentType", d.ContentType)
	set("contentEncoding", d.ContentEncoding)
	set("correlationId", d.CorrelationId)
	set("replyTo", d.ReplyTo)
	set("expiration", d.Expiration)
	set("messageId", d.MessageId)
	set("type", d.Type)
	set("userId", d.UserId)
	set("appId", d.AppId)

	if len(d.Headers) > 0 {
		out["headers"] = map[string]any(d.Headers)
	}
	if d.DeliveryMode != 0 {
		out["deliveryMode"] = int(d.DeliveryMode)
	}
	if d.Priority != 0 {
		out["priority"] = int(d.Priority)
	}
	if !d.Timestamp.IsZero() {
		out["timestamp"] = d.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}
