package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Connectors/internal/telemetry"
)

// ErrConsumerCancelled: брокер отменил consumer (например, очередь удалена).
var ErrConsumerCancelled = errors.New("consumer cancelled by broker")

// Decision: что сделать с сообщением после обработки.
type Decision int

const (
	// Ack подтверждает сообщение.
	Ack Decision = iota

	// Requeue возвращает сообщение в очередь.
	Requeue

	// Reject отбрасывает сообщение (или отправляет в DLX очереди).
	Reject
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Handler обрабатывает сообщение и возвращает решение.
type Handler func(ctx context.Context, d amqp.Delivery) Decision

// Consumer читает очередь и применяет решения Handler.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig
}

// ConsumerConfig: конфигурация Consumer.
type ConsumerConfig struct {
	Queue       string
	ConsumerTag string
	Exclusive   bool
	Arguments   amqp.Table

	// Prefetch: количество неподтверждённых сообщений (default: 1).
	Prefetch int

	Handler Handler
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:   conn,
		logger: telemetry.OrDefault(logger).With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Run потребляет сообщения, пока не отменён ctx.
//
// После разрыва соединения ждёт переподключения и продолжает.
// Если брокер отменил consumer, возвращает ErrConsumerCancelled.
func (c *Consumer) Run(ctx context.Context) error {
	reconnected := c.conn.ReconnectNotify()

	for {
		deliveries, cancelled, err := c.setup()
		if err != nil {
			c.logger.Error("failed to start consuming", "error", err)
		} else {
			c.logger.Info("consumer started", "consumer_tag", c.cfg.ConsumerTag)
			err = c.process(ctx, deliveries, cancelled)
			if err == nil || errors.Is(err, ErrConsumerCancelled) || ctx.Err() != nil {
				return err
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.conn.Done():
			return ErrConnectionClosed
		case <-reconnected:
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, <-chan string, error) {
	var (
		deliveries <-chan amqp.Delivery
		cancelled  <-chan string
	)
	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		cancelled = ch.NotifyCancel(make(chan string, 1))

		var err error
		deliveries, err = ch.Consume(
			c.cfg.Queue,       // queue
			c.cfg.ConsumerTag, // consumer tag (пусто - сгенерирует брокер)
			false,             // auto-ack
			c.cfg.Exclusive,   // exclusive
			false,             // no-local
			false,             // no-wait
			c.cfg.Arguments,   // args
		)
		if err != nil {
			return fmt.Errorf("consume: %w", err)
		}
		return nil
	})
	return deliveries, cancelled, err
}

func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery, cancelled <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case tag := <-cancelled:
			c.logger.Warn("consumer cancelled", "consumer_tag", tag)
			return fmt.Errorf("%w: %s", ErrConsumerCancelled, tag)

		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.apply(d, c.cfg.Handler(ctx, d))
		}
	}
}

// apply подтверждает или отклоняет сообщение.
func (c *Consumer) apply(d amqp.Delivery, decision Decision) {
	var err error
	switch decision {
	case Ack:
		err = d.Ack(false)
	case Requeue:
		err = d.Reject(true)
	default:
		err = d.Reject(false)
	}
	if err != nil {
		c.logger.Error("failed to settle delivery",
			"delivery_tag", d.DeliveryTag,
			"decision", decision.String(),
			"error", err,
		)
	}
}
