package query

import (
	"sync"
	"time"
)

// SlowQuery is one recorded slow execution.
type SlowQuery struct {
	SQL        string
	Tag        string
	Duration   time.Duration
	RecordedAt time.Time
}

// SlowQueryObserver receives slow queries as they are recorded.
type SlowQueryObserver func(SlowQuery)

// slowLog keeps the most recent slow executions in a bounded ring buffer.
type slowLog struct {
	mu        sync.Mutex
	entries   []SlowQuery
	capacity  int
	next      int
	full      bool
	observers []SlowQueryObserver
}

func newSlowLog(capacity int) *slowLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &slowLog{
		entries:  make([]SlowQuery, capacity),
		capacity: capacity,
	}
}

func (l *slowLog) record(entry SlowQuery) {
	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
	observers := make([]SlowQueryObserver, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, observe := range observers {
		observe(entry)
	}
}

func (l *slowLog) observe(fn SlowQueryObserver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// recent returns the recorded entries, oldest first.
func (l *slowLog) recent() []SlowQuery {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		out := make([]SlowQuery, l.next)
		copy(out, l.entries[:l.next])
		return out
	}

	out := make([]SlowQuery, 0, l.capacity)
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}
