package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []call
	histograms []call
	flushCount int
}

type call struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, call{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, call{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordSave(t *testing.T) {
	fb := install(t)

	RecordSave("cdc-state-trends", nil, 2*time.Second)
	RecordSave("wapo", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, fb.counters, 2)
	require.Len(t, fb.histograms, 2)
	assert.Equal(t, call{SaveTotal, 1, Labels{"feed": "cdc-state-trends", "status": "success"}}, fb.counters[0])
	assert.Equal(t, call{SaveTotal, 1, Labels{"feed": "wapo", "status": "failure"}}, fb.counters[1])
	assert.Equal(t, SaveDuration, fb.histograms[1].name)
	assert.InDelta(t, 1.5, fb.histograms[1].value, 1e-9)
}

func TestRecordRecords_IgnoresNonPositive(t *testing.T) {
	fb := install(t)

	RecordRecords("kff", KindProcessed, 0)
	RecordRecords("kff", KindSkipped, -3)
	RecordRecords("kff", KindInserted, 12)

	require.Len(t, fb.counters, 1)
	assert.Equal(t, call{RecordsTotal, 12, Labels{"feed": "kff", "kind": KindInserted}}, fb.counters[0])
}

func TestRecordStatement(t *testing.T) {
	fb := install(t)

	RecordStatement("covid_state_trends", 250, nil)
	RecordStatement("covid_state_trends", 10, errors.New("deadlock"))

	require.Len(t, fb.counters, 2)
	assert.Equal(t, "failure", fb.counters[1].labels["status"])
	require.Len(t, fb.histograms, 1, "failed statements carry no row observation")
	assert.Equal(t, 250.0, fb.histograms[0].value)
}

func TestRecordLookupAndRun(t *testing.T) {
	fb := install(t)

	RecordLookup("nominatim", nil)
	RecordRun(nil, time.Minute)

	require.Len(t, fb.counters, 1)
	assert.Equal(t, LookupsTotal, fb.counters[0].name)
	require.Len(t, fb.histograms, 1)
	assert.Equal(t, 60.0, fb.histograms[0].value)
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	t.Cleanup(func() { backend = orig })

	fb := &fakeBackend{}
	SetBackend(fb)
	SetBackend(nil)
	require.NoError(t, Flush())
	assert.Equal(t, 1, fb.flushCount, "nil does not replace the installed backend")
}

func TestNopBackend(t *testing.T) {
	var b Backend = nopBackend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	assert.NoError(t, b.Flush())
}
