package memory

import (
	"runtime"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	sharedConfig "github.com/natebag/Testsite-sub005/internal/shared/config"
	"github.com/natebag/Testsite-sub005/internal/shared/logger"
)

// Sample is one point of memory telemetry.
type Sample struct {
	TakenAt      time.Time
	HeapAlloc    uint64
	HeapSys      uint64
	HeapInuse    uint64
	Sys          uint64
	NumGC        uint32
	HeapFraction float64
}

// Manager ties the cache, pool registry, telemetry sampling, and leak
// heuristic together. Sampling runs on a gocron job; telemetry failures are
// swallowed with a logged warning, never surfaced to callers.
type Manager struct {
	cache   *Cache
	pools   *PoolRegistry
	emitter *eventEmitter
	leaks   *leakTracker
	log     logger.Interface

	warningFraction  float64
	criticalFraction float64
	sampleInterval   time.Duration
	sweepInterval    time.Duration
	historySize      int

	mu      sync.Mutex
	history []Sample

	scheduler gocron.Scheduler

	heapGauge      prometheus.Gauge
	pressureEvents *prometheus.CounterVec
}

// NewManager builds a manager from configuration. Start must be called to
// begin sampling and sweeping.
func NewManager(cfg *sharedConfig.MemoryConfig, reg prometheus.Registerer) *Manager {
	log := logger.NewLogger().With("component", "memory")

	m := &Manager{
		cache:            NewCache(cfg.CacheCapacity),
		pools:            NewPoolRegistry(),
		emitter:          newEventEmitter(log),
		leaks:            newLeakTracker(cfg.LeakGrowthPerMin),
		log:              log,
		warningFraction:  cfg.WarningFraction,
		criticalFraction: cfg.CriticalFraction,
		sampleInterval:   time.Duration(cfg.SampleInterval) * time.Second,
		sweepInterval:    time.Duration(cfg.SweepInterval) * time.Second,
		historySize:      cfg.HistorySize,
		heapGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "platform_memory_heap_fraction",
			Help: "Fraction of heap in use relative to heap obtained from the OS.",
		}),
		pressureEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_memory_pressure_events_total",
			Help: "Memory pressure events by severity.",
		}, []string{"severity"}),
	}

	if reg != nil {
		reg.MustRegister(m.heapGauge, m.pressureEvents)
	}
	return m
}

// Cache returns the managed LRU cache.
func (m *Manager) Cache() *Cache { return m.cache }

// Pools returns the managed pool registry.
func (m *Manager) Pools() *PoolRegistry { return m.pools }

// OnEvent registers a handler for memory events.
func (m *Manager) OnEvent(h EventHandler) {
	m.emitter.subscribe(h)
}

// Start begins the periodic sample and sweep jobs.
func (m *Manager) Start() error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	m.scheduler = scheduler

	if _, err := scheduler.NewJob(
		gocron.DurationJob(m.sampleInterval),
		gocron.NewTask(m.sampleOnce),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("memory-sampler"),
	); err != nil {
		return err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(m.sweepInterval),
		gocron.NewTask(func() {
			if removed := m.cache.Sweep(); removed > 0 {
				m.log.Debugw("cache sweep removed expired entries", "count", removed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("memory-sweeper"),
	); err != nil {
		return err
	}

	scheduler.Start()
	m.log.Infow("memory manager started",
		"sample_interval", m.sampleInterval,
		"sweep_interval", m.sweepInterval,
	)
	return nil
}

// Stop halts the periodic jobs.
func (m *Manager) Stop() {
	if m.scheduler != nil {
		if err := m.scheduler.Shutdown(); err != nil {
			m.log.Warnw("scheduler shutdown failed", "error", err)
		}
	}
}

// History returns a copy of the retained samples, oldest first.
func (m *Manager) History() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Sample, len(m.history))
	copy(out, m.history)
	return out
}

// RecordObjectCount feeds the leak heuristic with the live count of a tracked
// object type. approxSize is the estimated per-object size in bytes.
func (m *Manager) RecordObjectCount(typeName string, count int, approxSize int) {
	if report := m.leaks.record(typeName, count, approxSize, time.Now()); report != nil {
		m.log.Warnw("possible memory leak detected",
			"type", report.TypeName,
			"count", report.Count,
			"growth_per_min", report.GrowthPerMinute,
			"severity", report.Severity,
		)
		m.emitter.emit(Event{Type: EventLeak, Leak: report})
	}
}

func (m *Manager) sampleOnce() {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warnw("memory sampling failed", "panic", r)
		}
	}()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := Sample{
		TakenAt:   time.Now(),
		HeapAlloc: ms.HeapAlloc,
		HeapSys:   ms.HeapSys,
		HeapInuse: ms.HeapInuse,
		Sys:       ms.Sys,
		NumGC:     ms.NumGC,
	}
	if ms.HeapSys > 0 {
		sample.HeapFraction = float64(ms.HeapInuse) / float64(ms.HeapSys)
	}

	m.mu.Lock()
	m.history = append(m.history, sample)
	if len(m.history) > m.historySize {
		m.history = m.history[len(m.history)-m.historySize:]
	}
	m.mu.Unlock()

	m.heapGauge.Set(sample.HeapFraction)
	m.react(sample)
}

// react evaluates the sample against the pressure thresholds. Critical
// pressure clears the cache, trims pools, and requests a collection.
func (m *Manager) react(sample Sample) {
	switch {
	case sample.HeapFraction >= m.criticalFraction:
		m.pressureEvents.WithLabelValues("critical").Inc()
		m.log.Warnw("critical memory pressure",
			"heap_fraction", sample.HeapFraction,
			"heap_inuse", sample.HeapInuse,
		)
		m.cache.Clear()
		released := m.pools.TrimAll()
		runtime.GC()
		m.log.Infow("critical pressure handled",
			"pool_objects_released", released,
		)
		m.emitter.emit(Event{Type: EventCritical, Sample: &sample})

	case sample.HeapFraction >= m.warningFraction:
		m.pressureEvents.WithLabelValues("warning").Inc()
		m.log.Warnw("memory pressure warning",
			"heap_fraction", sample.HeapFraction,
		)
		m.emitter.emit(Event{Type: EventWarning, Sample: &sample})
	}
}
