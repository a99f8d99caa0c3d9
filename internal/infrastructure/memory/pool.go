package memory

import (
	"fmt"
	"sync"
)

// PoolStats reports per-pool reuse counters.
type PoolStats struct {
	Name      string
	Created   int64
	Reused    int64
	Available int
	InUse     int
}

// Pool is a named collection of reusable objects. Objects handed back are
// passed through reset before they become available again. Objects that did
// not originate from the pool are refused.
type Pool struct {
	name    string
	factory func() interface{}
	reset   func(interface{})

	mu        sync.Mutex
	available []interface{}
	inUse     map[interface{}]struct{}
	created   int64
	reused    int64
}

// Take returns an object from the pool, creating one when none is available.
func (p *Pool) Take() interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	var obj interface{}
	if n := len(p.available); n > 0 {
		obj = p.available[n-1]
		p.available = p.available[:n-1]
		p.reused++
	} else {
		obj = p.factory()
		p.created++
	}
	p.inUse[obj] = struct{}{}
	return obj
}

// Give returns an object to the pool. The object is reset before it becomes
// available. Returning an object the pool does not track is a no-op and
// returns false.
func (p *Pool) Give(obj interface{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.inUse[obj]; !ok {
		return false
	}
	delete(p.inUse, obj)

	if p.reset != nil {
		p.reset(obj)
	}
	p.available = append(p.available, obj)
	return true
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolStats{
		Name:      p.name,
		Created:   p.created,
		Reused:    p.reused,
		Available: len(p.available),
		InUse:     len(p.inUse),
	}
}

// trim halves the available list, releasing the older half to the collector.
func (p *Pool) trim() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	keep := len(p.available) / 2
	released := len(p.available) - keep
	p.available = p.available[len(p.available)-keep:]
	return released
}

// PoolRegistry manages the named object pools.
type PoolRegistry struct {
	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewPoolRegistry creates an empty registry.
func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{pools: make(map[string]*Pool)}
}

// CreatePool registers a named pool and pre-populates it with initialSize
// objects. Registering a name twice is an error.
func (r *PoolRegistry) CreatePool(name string, factory func() interface{}, reset func(interface{}), initialSize int) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("pool %q requires a factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[name]; exists {
		return nil, fmt.Errorf("pool %q already registered", name)
	}

	p := &Pool{
		name:    name,
		factory: factory,
		reset:   reset,
		inUse:   make(map[interface{}]struct{}),
	}
	for i := 0; i < initialSize; i++ {
		p.available = append(p.available, factory())
		p.created++
	}
	r.pools[name] = p
	return p, nil
}

// Take takes an object from the named pool. Returns nil when the pool is
// unknown.
func (r *PoolRegistry) Take(name string) interface{} {
	r.mu.RLock()
	p := r.pools[name]
	r.mu.RUnlock()

	if p == nil {
		return nil
	}
	return p.Take()
}

// Give returns an object to the named pool.
func (r *PoolRegistry) Give(name string, obj interface{}) bool {
	r.mu.RLock()
	p := r.pools[name]
	r.mu.RUnlock()

	if p == nil {
		return false
	}
	return p.Give(obj)
}

// Get returns the named pool, or nil.
func (r *PoolRegistry) Get(name string) *Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pools[name]
}

// Stats returns counters for every registered pool.
func (r *PoolRegistry) Stats() []PoolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]PoolStats, 0, len(r.pools))
	for _, p := range r.pools {
		stats = append(stats, p.Stats())
	}
	return stats
}

// TrimAll halves every pool's available list. Used under memory pressure.
func (r *PoolRegistry) TrimAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	released := 0
	for _, p := range r.pools {
		released += p.trim()
	}
	return released
}
