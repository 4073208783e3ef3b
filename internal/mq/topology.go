package mq

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueInfo: состояние очереди на брокере.
type QueueInfo struct {
	Name      string
	Messages  int
	Consumers int
}

// CheckQueue проверяет, что очередь существует, не создавая её.
//
// Пассивное объявление закрывает канал при ошибке, поэтому проверка
// идёт на отдельном канале.
func CheckQueue(c *Connection, name string) (QueueInfo, error) {
	var info QueueInfo

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || conn.IsClosed() {
		return info, ErrNoChannel
	}

	ch, err := conn.Channel()
	if err != nil {
		return info, fmt.Errorf("open channel: %w", err)
	}
	defer func() {
		if !ch.IsClosed() {
			ch.Close()
		}
	}()

	q, err := ch.QueueDeclarePassive(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return info, fmt.Errorf("queue %s: %w", name, err)
	}
	return QueueInfo{Name: q.Name, Messages: q.Messages, Consumers: q.Consumers}, nil
}

// Table превращает map в аргументы AMQP. Вложенные map тоже конвертируются,
// json.Number становится int64 или float64.
func Table(m map[string]any) amqp.Table {
	if len(m) == 0 {
		return nil
	}
	t := make(amqp.Table, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			t[k] = Table(val)
		case json.Number:
			if i, err := val.Int64(); err == nil {
				t[k] = i
			} else if f, err := val.Float64(); err == nil {
				t[k] = f
			} else {
				t[k] = val.String()
			}
		default:
			t[k] = v
		}
	}
	return t
}
