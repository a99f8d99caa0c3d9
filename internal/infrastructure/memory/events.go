package memory

import (
	"sync"

	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// EventType identifies a memory pressure or leak event.
type EventType string

const (
	EventWarning  EventType = "memory:warning"
	EventCritical EventType = "memory:critical"
	EventLeak     EventType = "memory:leak"
)

// Event carries the payload for a memory event. Sample is set for pressure
// events, Leak for leak events.
type Event struct {
	Type   EventType
	Sample *Sample
	Leak   *LeakReport
}

// EventHandler receives memory events.
type EventHandler func(Event)

type eventEmitter struct {
	mu       sync.RWMutex
	handlers []EventHandler
	log      logger.Interface
}

func newEventEmitter(log logger.Interface) *eventEmitter {
	return &eventEmitter{log: log}
}

func (e *eventEmitter) subscribe(h EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// emit invokes every handler; a panic in one handler does not affect others.
func (e *eventEmitter) emit(ev Event) {
	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Warnw("memory event handler panicked",
						"event", string(ev.Type),
						"panic", r,
					)
				}
			}()
			h(ev)
		}()
	}
}
