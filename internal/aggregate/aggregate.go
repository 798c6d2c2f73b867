// Package aggregate implements the per-partition windowed aggregators used to
// derive columns such as 7-day means, running totals and week-over-week
// percent change.
//
// State is kept in a PartitionCache keyed by partition (e.g. a state code)
// and then by namespace (e.g. "cases_7_day_mean"). Every aggregator call
// mutates that state, so each one must be invoked exactly once per record and
// in record order; calling it twice for the same record shifts the window.
//
// A PartitionCache belongs to a single save. It is not safe for concurrent
// use and is never persisted.
package aggregate

import "github.com/CThaw90/refocus-dataset/internal/records"

// PartitionCache maps partition key -> Partition.
type PartitionCache struct {
	parts map[string]*Partition
}

// NewPartitionCache returns an empty cache.
func NewPartitionCache() *PartitionCache {
	return &PartitionCache{parts: make(map[string]*Partition)}
}

// Partition returns the state for key, creating it on first use.
func (c *PartitionCache) Partition(key string) *Partition {
	p, ok := c.parts[key]
	if !ok {
		p = &Partition{
			windows: make(map[string]*Window),
			values:  make(map[string]any),
		}
		c.parts[key] = p
	}
	return p
}

// Len returns the number of partitions seen so far.
func (c *PartitionCache) Len() int { return len(c.parts) }

// Partition holds aggregator windows by namespace plus arbitrary cached
// values (lookup results and the like).
type Partition struct {
	windows map[string]*Window
	values  map[string]any
}

// Window returns the window for namespace, creating one with the given
// capacity on first use. The capacity of an existing window is not changed.
func (p *Partition) Window(namespace string, capacity int) *Window {
	w, ok := p.windows[namespace]
	if !ok {
		w = NewWindow(capacity)
		p.windows[namespace] = w
	}
	return w
}

// Value returns a cached value stored with SetValue.
func (p *Partition) Value(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// SetValue caches v under key for the lifetime of the cache.
func (p *Partition) SetValue(key string, v any) { p.values[key] = v }

// RollingMean pushes value into the partition's window for namespace and
// returns the trailing mean of the last size values. Until size values have
// been observed it returns 0; published datasets use that warm-up convention
// and downstream consumers rely on it.
//
// Non-numeric and nil values occupy a slot in the window but contribute 0 to
// the sum.
func (c *PartitionCache) RollingMean(partition, namespace string, value any, size int) float64 {
	if size <= 0 {
		return 0
	}
	w := c.Partition(partition).Window(namespace, size)
	w.Push(value)
	if !w.Full() {
		return 0
	}
	return w.Sum() / float64(size)
}

// CumulativeSum adds value to the running total for namespace and returns
// the new total. Nil and non-numeric values count as 0.
func (c *PartitionCache) CumulativeSum(partition, namespace string, value any) float64 {
	w := c.Partition(partition).Window(namespace, 0)
	w.Push(value)
	return w.Sum()
}

// PercentChange keeps the last n+1 values for namespace. Once n+1 values are
// buffered it returns (latest-oldest)/oldest, provided the oldest value is
// numeric and positive; otherwise, and during warm-up, it returns 0.
func (c *PartitionCache) PercentChange(partition, namespace string, value any, n int) float64 {
	if n <= 0 {
		return 0
	}
	w := c.Partition(partition).Window(namespace, n+1)
	w.Push(value)
	if !w.Full() {
		return 0
	}
	oldest, ok := records.Float(w.Oldest())
	if !ok || oldest <= 0 {
		return 0
	}
	latest := records.FloatOrZero(w.Latest())
	return (latest - oldest) / oldest
}
