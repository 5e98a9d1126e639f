package mappingedit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu   sync.Mutex
	got  map[string][]int
	hits chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(map[string][]int), hits: make(chan struct{}, 16)}
}

func (r *recorder) sink(key string, v int) {
	r.mu.Lock()
	r.got[key] = append(r.got[key], v)
	r.mu.Unlock()
	r.hits <- struct{}{}
}

func (r *recorder) values(key string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.got[key]...)
}

func TestDebouncerCoalesces(t *testing.T) {
	r := newRecorder()
	d := NewDebouncer(20*time.Millisecond, r.sink)
	defer d.Stop()

	for i := 1; i <= 5; i++ {
		d.Submit("text/html|name", i)
	}
	d.Submit("text/html|type", 9)

	for i := 0; i < 2; i++ {
		select {
		case <-r.hits:
		case <-time.After(2 * time.Second):
			t.Fatal("debounced value not delivered")
		}
	}
	assert.Equal(t, []int{5}, r.values("text/html|name"))
	assert.Equal(t, []int{9}, r.values("text/html|type"))
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncerFlush(t *testing.T) {
	r := newRecorder()
	d := NewDebouncer(time.Hour, r.sink)
	defer d.Stop()

	d.Submit("b", 2)
	d.Submit("a", 1)
	d.Submit("a", 3)
	assert.Equal(t, 2, d.Pending())
	assert.Equal(t, []int{3, 2}, d.PendingValues())

	d.Flush()
	assert.Equal(t, []int{3}, r.values("a"))
	assert.Equal(t, []int{2}, r.values("b"))
	assert.Equal(t, 0, d.Pending())
	assert.Empty(t, d.PendingValues())
}

func TestDebouncerStop(t *testing.T) {
	r := newRecorder()
	d := NewDebouncer(10*time.Millisecond, r.sink)

	d.Submit("a", 1)
	d.Stop()
	d.Submit("a", 2)
	assert.Equal(t, 0, d.Pending())

	select {
	case <-r.hits:
		t.Fatal("stopped debouncer delivered a value")
	case <-time.After(50 * time.Millisecond):
	}
}
