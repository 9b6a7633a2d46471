// Package coalesce collapses bursts of submissions per key into a single trailing call.
//
// Every Submit for a key cancels the pending call for that key and schedules a new one
// after the quiet period, carrying the most recent value. Keys are independent.
package coalesce

import (
	"sync"
	"time"
)

type entry[V any] struct {
	timer *time.Timer
	value V
	gen   uint64
}

type Coalescer[K comparable, V any] struct {
	delay time.Duration
	fn    func(K, V)

	mu      sync.Mutex
	pending map[K]*entry[V]
	gen     uint64
	stopped bool
	running sync.WaitGroup
}

// New returns a Coalescer that invokes fn delay after the last Submit for a key.
// fn runs on its own goroutine.
func New[K comparable, V any](delay time.Duration, fn func(K, V)) *Coalescer[K, V] {
	return &Coalescer[K, V]{
		delay:   delay,
		fn:      fn,
		pending: make(map[K]*entry[V]),
	}
}

// Submit schedules fn(key, value), replacing any call still pending for key.
func (c *Coalescer[K, V]) Submit(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if e, ok := c.pending[key]; ok {
		e.timer.Stop()
	}
	c.gen++
	gen := c.gen
	e := &entry[V]{value: value, gen: gen}
	e.timer = time.AfterFunc(c.delay, func() { c.fire(key, gen) })
	c.pending[key] = e
}

func (c *Coalescer[K, V]) fire(key K, gen uint64) {
	c.mu.Lock()
	e, ok := c.pending[key]
	// a newer Submit or a Cancel superseded this timer
	if !ok || e.gen != gen || c.stopped {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	c.running.Add(1)
	c.mu.Unlock()

	defer c.running.Done()
	c.fn(key, e.value)
}

// Flush runs the pending call for key immediately. It reports whether one was pending.
func (c *Coalescer[K, V]) Flush(key K) bool {
	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok || c.stopped {
		c.mu.Unlock()
		return false
	}
	e.timer.Stop()
	delete(c.pending, key)
	c.running.Add(1)
	c.mu.Unlock()

	defer c.running.Done()
	c.fn(key, e.value)
	return true
}

// FlushAll runs every pending call synchronously.
func (c *Coalescer[K, V]) FlushAll() {
	c.mu.Lock()
	keys := make([]K, 0, len(c.pending))
	for k := range c.pending {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.Flush(k)
	}
}

// Cancel drops the pending call for key without running it.
func (c *Coalescer[K, V]) Cancel(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(c.pending, key)
	return true
}

// Pending reports whether a call is scheduled for key.
func (c *Coalescer[K, V]) Pending(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Stop cancels every pending call and waits for calls already running.
// Submit after Stop is a no-op.
func (c *Coalescer[K, V]) Stop() {
	c.mu.Lock()
	c.stopped = true
	for k, e := range c.pending {
		e.timer.Stop()
		delete(c.pending, k)
	}
	c.mu.Unlock()
	c.running.Wait()
}
