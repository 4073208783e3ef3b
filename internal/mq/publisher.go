package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Connectors/internal/telemetry"
)

// Publisher публикует сообщения через Connection.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: telemetry.OrDefault(logger),
	}
}

// Publish отправляет сообщение в exchange с routingKey.
// Пустой exchange означает default exchange (routingKey - имя очереди).
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			exchange,   // exchange
			routingKey, // routing key
			false,      // mandatory
			false,      // immediate
			msg,
		)
		if err != nil {
			return fmt.Errorf("publish to %q/%q: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.MessageId,
			"size", len(msg.Body),
		)
		return nil
	})
}
