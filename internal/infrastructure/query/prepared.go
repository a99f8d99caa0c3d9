package query

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// preparedHandle tracks one promoted statement.
type preparedHandle struct {
	name     string
	sqlText  string
	stmt     *sql.Stmt
	useCount int64
}

// preparedSet promotes often-seen statements to named prepared handles.
// Promotion happens after a statement exceeds the use threshold; when the
// set is full the least-used handle is evicted and closed. Promotion is
// transparent to callers.
type preparedSet struct {
	mu        sync.Mutex
	db        *sql.DB
	threshold int
	capacity  int
	seen      map[string]int64
	handles   map[string]*preparedHandle
	nextID    int
}

func newPreparedSet(db *sql.DB, threshold, capacity int) *preparedSet {
	if threshold <= 0 {
		threshold = 3
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &preparedSet{
		db:        db,
		threshold: threshold,
		capacity:  capacity,
		seen:      make(map[string]int64),
		handles:   make(map[string]*preparedHandle),
	}
}

// stmtFor returns the prepared statement for normalized, promoting it when
// its use count crosses the threshold. Returns nil when the statement runs
// unprepared. Preparation failures fall back to unprepared execution.
func (p *preparedSet) stmtFor(ctx context.Context, normalized string) *sql.Stmt {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.handles[normalized]; ok {
		h.useCount++
		return h.stmt
	}

	p.seen[normalized]++
	if p.seen[normalized] <= int64(p.threshold) {
		return nil
	}

	stmt, err := p.db.PrepareContext(ctx, normalized)
	if err != nil {
		return nil
	}

	if len(p.handles) >= p.capacity {
		p.evictLeastUsedLocked()
	}

	p.nextID++
	h := &preparedHandle{
		name:     fmt.Sprintf("ps_%d", p.nextID),
		sqlText:  normalized,
		stmt:     stmt,
		useCount: 1,
	}
	p.handles[normalized] = h
	delete(p.seen, normalized)
	return h.stmt
}

func (p *preparedSet) evictLeastUsedLocked() {
	var victim *preparedHandle
	var victimKey string
	for key, h := range p.handles {
		if victim == nil || h.useCount < victim.useCount {
			victim = h
			victimKey = key
		}
	}
	if victim != nil {
		victim.stmt.Close()
		delete(p.handles, victimKey)
	}
}

// size returns the number of live handles.
func (p *preparedSet) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// close releases every prepared handle.
func (p *preparedSet) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, h := range p.handles {
		h.stmt.Close()
		delete(p.handles, key)
	}
}
