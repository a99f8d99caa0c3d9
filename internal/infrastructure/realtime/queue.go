package realtime

import "sync"

// eventQueue buffers outbound messages while the connection is down. It is
// FIFO and bounded; when full the oldest message is dropped to admit the new
// one.
type eventQueue struct {
	mu       sync.Mutex
	items    []*Message
	capacity int
	dropped  uint64
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &eventQueue{capacity: capacity}
}

func (q *eventQueue) push(m *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, m)
}

// drain removes and returns all queued messages in arrival order.
func (q *eventQueue) drain() []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *eventQueue) droppedCount() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
