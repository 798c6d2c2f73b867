package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollingMean_WarmUpThenMean(t *testing.T) {
	c := NewPartitionCache()
	var got []float64
	for _, v := range []any{1, 2, 3, 4, 5, 6, 7} {
		got = append(got, c.RollingMean("NY", "cases", v, 7))
	}
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 4.0}, got)
}

func TestRollingMean_SlidesAndEvicts(t *testing.T) {
	c := NewPartitionCache()
	for _, v := range []any{1, 2, 3} {
		c.RollingMean("p", "ns", v, 3)
	}
	// window is now [2,3,10]
	assert.InDelta(t, 5.0, c.RollingMean("p", "ns", 10, 3), 1e-9)
	// window is now [3,10,nil]; nil counts as zero
	assert.InDelta(t, 13.0/3, c.RollingMean("p", "ns", nil, 3), 1e-9)
	// window is now [10,nil,"NA"]
	assert.InDelta(t, 10.0/3, c.RollingMean("p", "ns", "NA", 3), 1e-9)
	// the nil and "NA" evictions subtract nothing
	assert.InDelta(t, 2.0/3, c.RollingMean("p", "ns", 2, 3), 1e-9)

	w := c.Partition("p").Window("ns", 3)
	assert.Equal(t, 3, w.Len(), "buffer never exceeds its capacity")
}

func TestRollingMean_PartitionsAndNamespacesAreIndependent(t *testing.T) {
	c := NewPartitionCache()
	for i := 0; i < 6; i++ {
		c.RollingMean("NY", "cases", 10, 7)
	}
	assert.Zero(t, c.RollingMean("CA", "cases", 10, 7), "fresh partition starts warm-up")
	assert.Zero(t, c.RollingMean("NY", "deaths", 10, 7), "fresh namespace starts warm-up")
	assert.Equal(t, 10.0, c.RollingMean("NY", "cases", 10, 7))
	assert.Equal(t, 2, c.Len())
}

func TestRollingMean_InvalidWindow(t *testing.T) {
	c := NewPartitionCache()
	assert.Zero(t, c.RollingMean("p", "ns", 5, 0))
	assert.Zero(t, c.Len(), "no state is created for a non-positive window")
}

func TestPercentChange(t *testing.T) {
	c := NewPartitionCache()
	values := []any{100, 100, 100, 100, 100, 100, 100, 150}
	var got []float64
	for _, v := range values {
		got = append(got, c.PercentChange("TX", "cases_7", v, 7))
	}
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0, 0, 0.5}, got)
}

func TestPercentChange_OldestNotPositive(t *testing.T) {
	tests := []struct {
		name   string
		oldest any
	}{
		{"zero", 0},
		{"negative", -5},
		{"nil", nil},
		{"text", "NA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPartitionCache()
			assert.Zero(t, c.PercentChange("p", "ns", tt.oldest, 2))
			assert.Zero(t, c.PercentChange("p", "ns", 10, 2))
			assert.Zero(t, c.PercentChange("p", "ns", 20, 2))
			// oldest is now 10
			assert.InDelta(t, 2.0, c.PercentChange("p", "ns", 30, 2), 1e-9)
		})
	}
}

func TestPercentChange_LatestNonNumeric(t *testing.T) {
	c := NewPartitionCache()
	c.PercentChange("p", "ns", 50, 1)
	assert.InDelta(t, -1.0, c.PercentChange("p", "ns", nil, 1), 1e-9)
}

func TestCumulativeSum(t *testing.T) {
	c := NewPartitionCache()
	var got []float64
	for _, v := range []any{10, nil, 5} {
		got = append(got, c.CumulativeSum("WA", "tests", v))
	}
	assert.Equal(t, []float64{10, 10, 15}, got)
	assert.Equal(t, 3.0, c.CumulativeSum("OR", "tests", "3"))
}

func TestWindow_CapacityInvariant(t *testing.T) {
	w := NewWindow(4)
	for i := 0; i < 100; i++ {
		w.Push(i)
		require.LessOrEqual(t, w.Len(), w.Cap())
	}
	assert.Equal(t, 96, w.Oldest())
	assert.Equal(t, 99, w.Latest())
	assert.Equal(t, float64(96+97+98+99), w.Sum())
}

func TestPartition_Values(t *testing.T) {
	c := NewPartitionCache()
	p := c.Partition("geo:1,2")
	_, ok := p.Value("location")
	assert.False(t, ok)
	p.SetValue("location", "Kings County")
	v, ok := c.Partition("geo:1,2").Value("location")
	assert.True(t, ok)
	assert.Equal(t, "Kings County", v)
}
