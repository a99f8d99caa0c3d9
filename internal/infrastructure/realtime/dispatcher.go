package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Handler receives the raw payload of a dispatched event.
type Handler func(data json.RawMessage)

// HandlerRef identifies a registered handler so it can be removed.
type HandlerRef struct {
	event string
	id    uint64
}

// dispatcher fans events out to registered handlers. A panicking handler is
// logged and does not affect the connection or other handlers.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
	log      logger.Interface
}

func newDispatcher(log logger.Interface) *dispatcher {
	return &dispatcher{
		handlers: make(map[string]map[uint64]Handler),
		log:      log,
	}
}

func (d *dispatcher) on(event string, h Handler) HandlerRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	if d.handlers[event] == nil {
		d.handlers[event] = make(map[uint64]Handler)
	}
	d.handlers[event][d.nextID] = h
	return HandlerRef{event: event, id: d.nextID}
}

func (d *dispatcher) off(ref HandlerRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.handlers[ref.event]; ok {
		delete(m, ref.id)
		if len(m) == 0 {
			delete(d.handlers, ref.event)
		}
	}
}

func (d *dispatcher) dispatch(event string, data json.RawMessage) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[event]))
	for _, h := range d.handlers[event] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		d.invoke(event, h, data)
	}
}

func (d *dispatcher) invoke(event string, h Handler, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorw("event handler panicked",
				"event", event,
				"panic", fmt.Sprintf("%v", r))
		}
	}()
	h(data)
}
