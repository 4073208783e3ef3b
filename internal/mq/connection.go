package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Connectors/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultMaxBackoff = 30 * time.Second
	initialBackoff    = time.Second
)

var (
	// ErrConnectionClosed: соединение закрыто вызовом Close.
	ErrConnectionClosed = errors.New("amqp connection closed")

	// ErrNoChannel: канал ещё не открыт или потерян.
	ErrNoChannel = errors.New("no amqp channel available")
)

// Connection: AMQP соединение с автоматическим переподключением.
//
// Каждый inbound executable и каждый вызов outbound коннектора
// работают со своим Connection: у них разные брокеры и учётные данные.
type Connection struct {
	url        string
	logger     *slog.Logger
	maxBackoff time.Duration

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closed   bool
	closedCh chan struct{}

	// Подписчики на переподключение
	subsMu sync.Mutex
	subs   []chan struct{}
}

// Config: параметры соединения.
type Config struct {
	// URL: amqp:// или amqps:// URI.
	URL string

	// Reconnect включает фоновое переподключение (для долгоживущих consumer).
	Reconnect bool

	// MaxBackoff: предельная задержка между попытками (default: 30s).
	MaxBackoff time.Duration

	Logger *slog.Logger
}

// Dial открывает соединение и канал.
func Dial(cfg Config) (*Connection, error) {
	c := &Connection{
		url:        cfg.URL,
		logger:     telemetry.OrDefault(cfg.Logger),
		maxBackoff: cfg.MaxBackoff,
		closedCh:   make(chan struct{}),
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = defaultMaxBackoff
	}

	if err := c.connect(); err != nil {
		return nil, err
	}
	if cfg.Reconnect {
		go c.watch()
	}
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Debug("connected to RabbitMQ")
	return nil
}

// watch ждёт разрыва соединения и переподключается.
func (c *Connection) watch() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("amqp connection lost", "error", err)
			}
			if !c.reconnect() {
				return
			}
		}
	}
}

// reconnect повторяет подключение с экспоненциальной задержкой.
// Возвращает false, если соединение закрыли во время ожидания.
func (c *Connection) reconnect() bool {
	delay := initialBackoff
	for {
		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("amqp reconnect failed", "error", err, "next_delay", delay)
			delay = min(delay*2, c.maxBackoff)
			continue
		}

		c.logger.Info("reconnected to RabbitMQ")
		c.notifyReconnect()
		return true
	}
}

func (c *Connection) notifyReconnect() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// ReconnectNotify возвращает канал, получающий сигнал после каждого переподключения.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.subsMu.Lock()
	c.subs = append(c.subs, ch)
	c.subsMu.Unlock()
	return ch
}

// Done закрывается после Close.
func (c *Connection) Done() <-chan struct{} {
	return c.closedCh
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(fn func(ch *amqp.Channel) error) error {
	c.mu.RLock()
	closed, ch := c.closed, c.channel
	c.mu.RUnlock()

	if closed {
		return ErrConnectionClosed
	}
	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// IsConnected проверяет, установлено ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close закрывает канал и соединение. Повторный вызов ничего не делает.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil && !c.channel.IsClosed() {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ping проверяет соединение в пределах ctx.
func (c *Connection) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNoChannel
	}
	return nil
}
