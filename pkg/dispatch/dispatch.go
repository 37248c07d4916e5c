// Package dispatch marshals callbacks onto the UI thread.
//
// All elements, state cells and renderers are confined to a single UI
// thread. Work that completes elsewhere (timers, fetches, background error
// reports) is handed back through Dispatch.
package dispatch

import "sync"

var (
	dispatchMu   sync.RWMutex
	dispatchFunc func(callback func())
)

// RegisterDispatch sets the dispatch function used to schedule callbacks on
// the UI thread. Pass nil to unregister. Returns the previous function.
func RegisterDispatch(fn func(callback func())) func(callback func()) {
	dispatchMu.Lock()
	prev := dispatchFunc
	dispatchFunc = fn
	dispatchMu.Unlock()
	return prev
}

// Dispatch schedules a callback to run on the UI thread.
// Returns true if the callback was successfully scheduled, false if no dispatch function
// is registered or the callback is nil.
func Dispatch(callback func()) bool {
	dispatchMu.RLock()
	fn := dispatchFunc
	dispatchMu.RUnlock()
	if fn == nil || callback == nil {
		return false
	}
	fn(callback)
	return true
}

var mainQueue = NewQueue()

// Main returns the queue that holds callbacks posted while no dispatch
// function is registered. Hosts without their own event loop drain it from
// the UI thread.
func Main() *Queue { return mainQueue }

// Post schedules callback on the UI thread through the registered dispatch
// function, or appends it to Main. It never runs callback on the calling
// goroutine.
func Post(callback func()) {
	if callback == nil {
		return
	}
	if !Dispatch(callback) {
		mainQueue.Post(callback)
	}
}

// Queue is a FIFO of callbacks drained by the UI thread. Hosts without their
// own event loop register Queue.Post with RegisterDispatch and call Drain
// from their main loop.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	notify  chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Post appends a callback. Safe for concurrent use.
func (q *Queue) Post(callback func()) {
	if callback == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, callback)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Ready is signalled after a Post. It is edge-triggered and coalesces.
func (q *Queue) Ready() <-chan struct{} {
	return q.notify
}

// Len reports the number of queued callbacks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Drain runs queued callbacks in order, including callbacks posted while
// draining, and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, cb := range batch {
			cb()
			n++
		}
	}
}
