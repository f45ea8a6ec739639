// Package recordertest provides an in-memory capture device and a manually
// advanced clock for driving recorder.Engine in tests.
package recordertest

import (
	"context"
	"sync"
	"time"

	"github.com/rx3lixir/voicebank/internal/recorder"
	"github.com/rx3lixir/voicebank/pkg/audio"
)

// Device hands out Streams. Setting OpenErr makes every Open fail; Gate,
// when non-nil, holds Open until it is closed or ctx ends.
type Device struct {
	mu      sync.Mutex
	OpenErr error
	Gate    chan struct{}
	opens   int
	streams []*Stream
}

func (d *Device) Open(ctx context.Context, format audio.PCMFormat) (recorder.Stream, error) {
	d.mu.Lock()
	gate := d.Gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			// Simulates a permission prompt answered after the caller gave up
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &Stream{chunks: make(chan []byte, 64)}
	d.streams = append(d.streams, s)
	return s, nil
}

// Opens counts acquisition attempts
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Live counts streams handed out and not yet closed
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.streams {
		if s.Closes() == 0 {
			n++
		}
	}
	return n
}

// Last returns the most recent stream or nil
func (d *Device) Last() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

type Stream struct {
	mu      sync.Mutex
	chunks  chan []byte
	ended   bool
	err     error
	closes  int
	pauses  int
	resumes int
}

func (s *Stream) Chunks() <-chan []byte { return s.chunks }

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	return nil
}

func (s *Stream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.end()
	return nil
}

// Push queues PCM unless the stream has ended
func (s *Stream) Push(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	select {
	case s.chunks <- pcm:
	default:
	}
}

// Pending counts pushed chunks the engine has not read yet
func (s *Stream) Pending() int {
	return len(s.chunks)
}

// Fail ends capture with err as if the device disappeared
func (s *Stream) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.end()
}

func (s *Stream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *Stream) Pauses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses
}

func (s *Stream) Resumes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumes
}

func (s *Stream) end() {
	if !s.ended {
		s.ended = true
		close(s.chunks)
	}
}

// Clock only moves when Advance is called. A tick is handed over
// synchronously: Advance returns once the receiver has taken it, or the
// ticker was stopped.
type Clock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[*ticker]struct{}
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start, tickers: make(map[*ticker]struct{})}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTicker(d time.Duration) recorder.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &ticker{
		clock:   c,
		c:       make(chan time.Time),
		period:  d,
		next:    c.now.Add(d),
		stopped: make(chan struct{}),
	}
	c.tickers[t] = struct{}{}
	return t
}

// Tickers counts tickers that have not been stopped
func (c *Clock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// Advance moves time forward by d, delivering every tick that falls due
// in order
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		var due *ticker
		for t := range c.tickers {
			if !t.next.After(target) && (due == nil || t.next.Before(due.next)) {
				due = t
			}
		}
		if due == nil {
			break
		}

		at := due.next
		c.now = at
		due.next = at.Add(due.period)
		c.mu.Unlock()

		select {
		case due.c <- at:
		case <-due.stopped:
		}

		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

// AdvanceSeconds calls Advance one second at a time
func (c *Clock) AdvanceSeconds(n int) {
	for range n {
		c.Advance(time.Second)
	}
}

type ticker struct {
	clock   *Clock
	c       chan time.Time
	period  time.Duration
	next    time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *ticker) C() <-chan time.Time { return t.c }

func (t *ticker) Stop() {
	t.once.Do(func() {
		close(t.stopped)
		t.clock.mu.Lock()
		delete(t.clock.tickers, t)
		t.clock.mu.Unlock()
	})
}
