package core

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/go-drift/declui/pkg/dispatch"
	"github.com/go-drift/declui/pkg/errors"
)

// BoundaryManager observes every boundary report. It is the one part of
// the runtime that may be called from any goroutine. Callbacks never run on
// the reporting goroutine: they are handed to dispatch.Dispatch, or queued
// for Flush when no dispatcher is registered.
type BoundaryManager struct {
	total atomic.Int64

	mu         sync.Mutex
	boundaries map[uint64]*Boundary
	nextID     uint64
	counts     map[string]int
	recent     []ErrorInfo
	callbacks  []managerCallback
	nextCB     int
	pending    []func()
}

type managerCallback struct {
	id int
	fn func(ErrorInfo)
}

var (
	managerOnce sync.Once
	manager     *BoundaryManager
)

// Manager returns the process-wide boundary manager.
func Manager() *BoundaryManager {
	managerOnce.Do(func() { manager = NewBoundaryManager() })
	return manager
}

// NewBoundaryManager returns an empty manager. Tests use their own.
func NewBoundaryManager() *BoundaryManager {
	return &BoundaryManager{
		boundaries: make(map[uint64]*Boundary),
		counts:     make(map[string]int),
	}
}

// Register tracks b and returns its id.
func (m *BoundaryManager) Register(b *Boundary) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.boundaries[m.nextID] = b
	return m.nextID
}

// Unregister stops tracking the boundary with id.
func (m *BoundaryManager) Unregister(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boundaries, id)
}

// Boundaries returns the number of registered boundaries.
func (m *BoundaryManager) Boundaries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boundaries)
}

// OnError registers a global callback for every report. The returned func
// unregisters it.
func (m *BoundaryManager) OnError(fn func(ErrorInfo)) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextCB++
	id := m.nextCB
	m.callbacks = append(m.callbacks, managerCallback{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, cb := range m.callbacks {
			if cb.id == id {
				m.callbacks = append(m.callbacks[:i:i], m.callbacks[i+1:]...)
				return
			}
		}
	}
}

// Report records info and schedules the callbacks. Safe for concurrent use.
func (m *BoundaryManager) Report(info ErrorInfo) {
	m.total.Add(1)

	m.mu.Lock()
	m.counts[info.Component]++
	m.recent = append(m.recent, info)
	if len(m.recent) > MaxErrorHistory {
		m.recent = append(m.recent[:0:0], m.recent[len(m.recent)-MaxErrorHistory:]...)
	}
	callbacks := append([]managerCallback(nil), m.callbacks...)
	m.mu.Unlock()

	for _, cb := range callbacks {
		fn := cb.fn
		run := func() {
			defer errors.Recover("core.BoundaryManager")
			fn(info)
		}
		if !dispatch.Dispatch(run) {
			m.mu.Lock()
			m.pending = append(m.pending, run)
			m.mu.Unlock()
		}
	}
}

// Flush runs queued callbacks on the calling goroutine and returns how
// many ran. Hosts without a dispatcher call it from the UI thread.
func (m *BoundaryManager) Flush() int {
	n := 0
	for {
		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, run := range batch {
			run()
			n++
		}
	}
}

// TotalErrors returns the number of reports.
func (m *BoundaryManager) TotalErrors() int64 {
	return m.total.Load()
}

// ErrorCounts returns report counts by component.
func (m *BoundaryManager) ErrorCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counts)
}

// Recent returns the most recent reports, oldest first.
func (m *BoundaryManager) Recent() []ErrorInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ErrorInfo(nil), m.recent...)
}

// Reset clears counters, history and queued callbacks. Registered
// boundaries and callbacks stay.
func (m *BoundaryManager) Reset() {
	m.total.Store(0)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int)
	m.recent = nil
	m.pending = nil
}
