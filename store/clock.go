package store

import (
	"sync"
	"time"
)

// Clock supplies wall-clock time to the store.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// monotonic never returns the same instant twice, even when the source
// stalls or steps backwards.
type monotonic struct {
	mu   sync.Mutex
	src  Clock
	last time.Time
}

func newMonotonic(src Clock) *monotonic {
	return &monotonic{src: src}
}

// Now returns a UTC instant strictly after every previously returned one.
func (m *monotonic) Now() time.Time {
	return m.After(time.Time{})
}

// After returns an instant strictly after both prev and every previously
// returned instant.
func (m *monotonic) After(prev time.Time) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.src.Now().UTC().Round(0)
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	if !t.After(prev) {
		t = prev.UTC().Add(time.Nanosecond)
	}
	m.last = t
	return t
}
