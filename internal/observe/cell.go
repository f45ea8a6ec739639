// Package observe provides the single-writer state cell shared by the
// provisioner and the upload coordinator.
package observe

import "sync"

// Cell holds the current value of a state machine. Every Set starts a new
// generation; writers holding an older generation are ignored so results
// of abandoned operations never land.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	gen   uint64
	subs  map[chan T]struct{}
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[chan T]struct{}),
	}
}

// Get returns the current value
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Snapshot returns the current value with its generation
func (c *Cell[T]) Snapshot() (T, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.gen
}

// Set stores v under a new generation and returns it
func (c *Cell[T]) Set(v T) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.value = v
	c.publish(v)
	return c.gen
}

// SetIf stores v only while gen is still current
func (c *Cell[T]) SetIf(gen uint64, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.value = v
	c.publish(v)
	return true
}

// Update applies fn to the current value while gen is current. fn returning
// false leaves the cell untouched.
func (c *Cell[T]) Update(gen uint64, fn func(T) (T, bool)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	next, ok := fn(c.value)
	if !ok {
		return false
	}
	c.value = next
	c.publish(next)
	return true
}

// Subscribe returns a channel receiving every value stored from now on,
// starting with the current one. When a subscriber falls behind by more
// than buf values the oldest pending value is dropped.
func (c *Cell[T]) Subscribe(buf int) (<-chan T, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan T, buf)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.value
	c.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			close(ch)
			c.mu.Unlock()
		})
	}
	return ch, cancel
}

func (c *Cell[T]) publish(v T) {
	for ch := range c.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
