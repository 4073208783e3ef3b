package memory

import "sync"

// RuntimeMemory: история сообщений одного вызова агента.
type RuntimeMemory interface {
	AddMessage(m Message)
	AddMessages(ms []Message)

	// AllMessages возвращает всю историю.
	AllMessages() []Message

	// FilteredMessages возвращает сообщения, передаваемые модели.
	FilteredMessages() []Message

	Clear()
}

// DefaultRuntimeMemory хранит все сообщения и ничего не фильтрует.
type DefaultRuntimeMemory struct {
	mu       sync.RWMutex
	messages []Message
}

var _ RuntimeMemory = (*DefaultRuntimeMemory)(nil)

// NewDefaultRuntimeMemory создаёт пустую память.
func NewDefaultRuntimeMemory() *DefaultRuntimeMemory {
	return &DefaultRuntimeMemory{}
}

func (d *DefaultRuntimeMemory) AddMessage(m Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, m)
}

func (d *DefaultRuntimeMemory) AddMessages(ms []Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, ms...)
}

func (d *DefaultRuntimeMemory) AllMessages() []Message {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Message, len(d.messages))
	copy(out, d.messages)
	return out
}

func (d *DefaultRuntimeMemory) FilteredMessages() []Message {
	return d.AllMessages()
}

func (d *DefaultRuntimeMemory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = nil
}

// MessageWindow ограничивает FilteredMessages последними maxMessages сообщениями.
//
// Системное сообщение всегда остаётся первым и занимает одно место в окне.
// Результаты инструментов, чьё assistant сообщение вытеснено, тоже
// отбрасываются, поэтому окно может оказаться короче maxMessages.
// Делегат по-прежнему хранит все сообщения.
type MessageWindow struct {
	delegate    RuntimeMemory
	maxMessages int
}

var _ RuntimeMemory = (*MessageWindow)(nil)

// NewMessageWindow оборачивает delegate. maxMessages должен быть больше нуля.
func NewMessageWindow(delegate RuntimeMemory, maxMessages int) *MessageWindow {
	if maxMessages < 1 {
		maxMessages = 1
	}
	return &MessageWindow{delegate: delegate, maxMessages: maxMessages}
}

func (w *MessageWindow) AddMessage(m Message)     { w.delegate.AddMessage(m) }
func (w *MessageWindow) AddMessages(ms []Message) { w.delegate.AddMessages(ms) }
func (w *MessageWindow) AllMessages() []Message   { return w.delegate.AllMessages() }
func (w *MessageWindow) Clear()                   { w.delegate.Clear() }

func (w *MessageWindow) FilteredMessages() []Message {
	messages := w.delegate.FilteredMessages()

	var system *Message
	rest := make([]Message, 0, len(messages))
	for i := range messages {
		if messages[i].Role == RoleSystem {
			// Учитываем только первое системное сообщение
			if system == nil {
				system = &messages[i]
			}
			continue
		}
		rest = append(rest, messages[i])
	}

	limit := w.maxMessages
	if system != nil {
		limit--
	}
	if len(rest) > limit {
		rest = rest[len(rest)-limit:]

		// Результаты без вызвавшего их assistant сообщения
		for len(rest) > 0 && rest[0].Role == RoleToolCallResult {
			rest = rest[1:]
		}
	}

	out := make([]Message, 0, len(rest)+1)
	if system != nil {
		out = append(out, *system)
	}
	return append(out, rest...)
}
