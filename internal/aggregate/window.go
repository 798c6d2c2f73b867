package aggregate

import "github.com/CThaw90/refocus-dataset/internal/records"

// Window is a bounded FIFO of observed values with a running numeric sum.
// A capacity of 0 means unbounded history is not kept at all: only the sum
// is tracked (cumulative totals).
//
// Invariant: Len() <= capacity whenever capacity > 0. The oldest value is
// evicted (and subtracted from the sum) before the newest is added.
type Window struct {
	capacity int
	buf      []any
	sum      float64
}

// NewWindow returns an empty window holding at most capacity values.
func NewWindow(capacity int) *Window {
	if capacity < 0 {
		capacity = 0
	}
	return &Window{capacity: capacity, buf: make([]any, 0, capacity)}
}

// Push records v, evicting the oldest value when the window is full.
func (w *Window) Push(v any) {
	if w.capacity > 0 {
		if len(w.buf) == w.capacity {
			w.sum -= records.FloatOrZero(w.buf[0])
			copy(w.buf, w.buf[1:])
			w.buf = w.buf[:len(w.buf)-1]
		}
		w.buf = append(w.buf, v)
	}
	w.sum += records.FloatOrZero(v)
}

// Len returns the number of buffered values.
func (w *Window) Len() int { return len(w.buf) }

// Cap returns the configured capacity.
func (w *Window) Cap() int { return w.capacity }

// Full reports whether the window holds capacity values.
func (w *Window) Full() bool { return w.capacity > 0 && len(w.buf) == w.capacity }

// Sum returns the running sum of the numeric values currently accounted for.
func (w *Window) Sum() float64 { return w.sum }

// Oldest returns the earliest buffered value, or nil when empty.
func (w *Window) Oldest() any {
	if len(w.buf) == 0 {
		return nil
	}
	return w.buf[0]
}

// Latest returns the most recently pushed value, or nil when empty.
func (w *Window) Latest() any {
	if len(w.buf) == 0 {
		return nil
	}
	return w.buf[len(w.buf)-1]
}
