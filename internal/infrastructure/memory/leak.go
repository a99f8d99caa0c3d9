package memory

import (
	"sync"
	"time"
)

// LeakReport describes a suspected leak for one tracked object type.
type LeakReport struct {
	TypeName        string
	Count           int
	GrowthPerMinute float64
	Severity        string
	ApproxBytes     int64
}

type typeWindow struct {
	count   int
	takenAt time.Time
}

// leakTracker keeps per-type object counts across sample windows and flags
// types whose growth rate exceeds the configured threshold.
type leakTracker struct {
	mu              sync.Mutex
	growthThreshold float64 // objects per minute
	windows         map[string][]typeWindow
	retainedWindows int
}

func newLeakTracker(growthPerMin int) *leakTracker {
	return &leakTracker{
		growthThreshold: float64(growthPerMin),
		windows:         make(map[string][]typeWindow),
		retainedWindows: 10,
	}
}

// record adds a window for typeName and returns a report when growth across
// the retained windows exceeds the threshold.
func (t *leakTracker) record(typeName string, count int, approxSize int, now time.Time) *LeakReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	wins := append(t.windows[typeName], typeWindow{count: count, takenAt: now})
	if len(wins) > t.retainedWindows {
		wins = wins[len(wins)-t.retainedWindows:]
	}
	t.windows[typeName] = wins

	if len(wins) < 2 {
		return nil
	}

	first, last := wins[0], wins[len(wins)-1]
	minutes := last.takenAt.Sub(first.takenAt).Minutes()
	if minutes <= 0 {
		return nil
	}

	growth := float64(last.count-first.count) / minutes
	if growth < t.growthThreshold {
		return nil
	}

	totalBytes := int64(count) * int64(approxSize)
	return &LeakReport{
		TypeName:        typeName,
		Count:           count,
		GrowthPerMinute: growth,
		Severity:        leakSeverity(totalBytes),
		ApproxBytes:     totalBytes,
	}
}

func leakSeverity(totalBytes int64) string {
	switch {
	case totalBytes >= 256<<20:
		return "critical"
	case totalBytes >= 64<<20:
		return "high"
	case totalBytes >= 8<<20:
		return "medium"
	default:
		return "low"
	}
}
