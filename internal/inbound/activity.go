package inbound

import (
	"sync"

	"github.com/shaiso/Connectors/internal/domain"
)

// defaultLogSize: размер журнала активности executable по умолчанию.
const defaultLogSize = 10

// activityLog: кольцевой буфер записей активности.
type activityLog struct {
	mu      sync.Mutex
	size    int
	entries []domain.Activity
	next    int
	full    bool
}

func newActivityLog(size int) *activityLog {
	if size <= 0 {
		size = defaultLogSize
	}
	return &activityLog{size: size, entries: make([]domain.Activity, size)}
}

// add добавляет запись, вытесняя самую старую при переполнении.
func (l *activityLog) add(a domain.Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = a
	l.next = (l.next + 1) % l.size
	if l.next == 0 {
		l.full = true
	}
}

// list возвращает записи от старых к новым.
func (l *activityLog) list() []domain.Activity {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		out := make([]domain.Activity, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]domain.Activity, 0, l.size)
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}
