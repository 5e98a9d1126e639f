package mappingedit

import (
	"sort"
	"sync"
	"time"
)

// DefaultDelay is how long edits of one field are coalesced.
const DefaultDelay = time.Second

// Debouncer delivers only the last value submitted per key once the key
// has been quiet for the delay.
type Debouncer[T any] struct {
	delay time.Duration
	sink  func(key string, v T)

	mu      sync.Mutex
	entries map[string]*entry[T]
	gen     uint64
	stopped bool
}

type entry[T any] struct {
	gen   uint64
	value T
	timer *time.Timer
}

func NewDebouncer[T any](delay time.Duration, sink func(key string, v T)) *Debouncer[T] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer[T]{
		delay:   delay,
		sink:    sink,
		entries: make(map[string]*entry[T]),
	}
}

// Submit replaces the pending value of key and restarts its timer.
func (d *Debouncer[T]) Submit(key string, v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if e, ok := d.entries[key]; ok {
		e.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.entries[key] = &entry[T]{
		gen:   gen,
		value: v,
		timer: time.AfterFunc(d.delay, func() { d.fire(key, gen) }),
	}
}

func (d *Debouncer[T]) fire(key string, gen uint64) {
	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok || e.gen != gen {
		// superseded or flushed
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()
	d.sink(key, e.value)
}

// Pending returns the number of keys waiting for delivery.
func (d *Debouncer[T]) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// PendingValues returns the values waiting for delivery, in key order.
func (d *Debouncer[T]) PendingValues() []T {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]T, len(keys))
	for i, k := range keys {
		values[i] = d.entries[k].value
	}
	return values
}

// Flush delivers all pending values now, in key order.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.entries))
	for k, e := range d.entries {
		e.timer.Stop()
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]T, len(keys))
	for i, k := range keys {
		values[i] = d.entries[k].value
		delete(d.entries, k)
	}
	d.mu.Unlock()

	for i, k := range keys {
		d.sink(k, values[i])
	}
}

// Stop drops pending values and rejects further submissions.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, k)
	}
	d.stopped = true
}
