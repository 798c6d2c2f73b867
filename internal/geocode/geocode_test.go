package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testOptions(base string) Options {
	return Options{BaseURL: base, RetryMax: 2, RetryWait: time.Millisecond, Interval: -1, Logger: quiet()}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Location
		want Location
	}{
		{
			"city and county prefix",
			Location{City: "Denver", County: "City and County of Denver", State: "Colorado"},
			Location{City: "Denver", County: "Denver", State: "Colorado"},
		},
		{
			"district of columbia",
			Location{County: "", State: "District of Columbia"},
			Location{City: "Washington", County: "District of Columbia", State: "Washington, DC"},
		},
		{
			"saint joseph",
			Location{City: "South Bend", County: "Saint Joseph County", State: "IN"},
			Location{City: "South Bend", County: "St. Joseph County", State: "Indiana"},
		},
		{
			"saint clair",
			Location{City: "Belleville", County: "Saint Clair County", State: "Illinois"},
			Location{City: "Belleville", County: "St. Clair County", State: "Illinois"},
		},
		{
			"missing parts",
			Location{County: "Kings County"},
			Location{City: NotAvailable, County: "Kings County", State: NotAvailable},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestParseCoordinatesAndKey(t *testing.T) {
	c, ok := ParseCoordinates("39.7392", " -104.9903")
	require.True(t, ok)
	assert.Equal(t, "39.7392,-104.9903", c.Key())

	c2, ok := ParseCoordinates(39.7392, -104.9903)
	require.True(t, ok)
	assert.Equal(t, c.Key(), c2.Key())

	_, ok = ParseCoordinates("", "1")
	assert.False(t, ok)
}

func TestNominatim_Resolve(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"address":{"town":"Golden","county":"Jefferson County","state":"Colorado"}}`)
	}))
	defer srv.Close()

	opt := testOptions(srv.URL)
	opt.UserAgent = "refocus-test"
	loc, err := NewNominatim(opt).Resolve(context.Background(), Coordinates{Latitude: 39.75, Longitude: -105.2})
	require.NoError(t, err)
	assert.Equal(t, Location{City: "Golden", County: "Jefferson County", State: "Colorado"}, loc)
	assert.Equal(t, "refocus-test", gotUA)
	assert.Contains(t, gotQuery, "lat=39.75")
	assert.Contains(t, gotQuery, "lon=-105.2")
}

func TestNominatim_NoAddress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Unable to geocode"}`)
	}))
	defer srv.Close()

	loc, err := NewNominatim(testOptions(srv.URL)).Resolve(context.Background(), Coordinates{})
	require.NoError(t, err)
	assert.Equal(t, Location{City: NotAvailable, County: NotAvailable, State: NotAvailable}, loc)
}

func TestFCC_RetriesThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/census/area", r.URL.Path)
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"results":[{"county_name":"Maricopa","state_name":"Arizona"}]}`)
	}))
	defer srv.Close()

	loc, err := NewFCC(testOptions(srv.URL)).Resolve(context.Background(), Coordinates{Latitude: 33.4, Longitude: -112})
	require.NoError(t, err)
	assert.Equal(t, "Maricopa", loc.County)
	assert.Equal(t, "Arizona", loc.State)
	assert.Equal(t, NotAvailable, loc.City)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFCC_GivesUp(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewFCC(testOptions(srv.URL)).Resolve(context.Background(), Coordinates{})
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "first attempt plus RetryMax")
}

func TestFCC_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	loc, err := NewFCC(testOptions(srv.URL)).Resolve(context.Background(), Coordinates{})
	require.NoError(t, err)
	assert.Equal(t, NotAvailable, loc.County)
}

func TestClient_NonRetryableStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewNominatim(testOptions(srv.URL)).Resolve(context.Background(), Coordinates{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClient_Throttles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	opt := testOptions(srv.URL)
	opt.Interval = 40 * time.Millisecond
	f := NewFCC(opt)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Resolve(context.Background(), Coordinates{})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

type countingResolver struct {
	calls int
	loc   Location
	err   error
}

func (c *countingResolver) Name() string { return "counting" }

func (c *countingResolver) Resolve(context.Context, Coordinates) (Location, error) {
	c.calls++
	return c.loc, c.err
}

func TestLookup_CachesNormalizedResult(t *testing.T) {
	r := &countingResolver{loc: Location{County: "Saint Clair County", State: "Michigan"}}
	cache := aggregate.NewPartitionCache()
	pt := Coordinates{Latitude: 42.9, Longitude: -82.5}

	for i := 0; i < 3; i++ {
		loc, err := Lookup(context.Background(), r, cache, pt)
		require.NoError(t, err)
		assert.Equal(t, "St. Clair County", loc.County)
		assert.Equal(t, NotAvailable, loc.City)
	}
	assert.Equal(t, 1, r.calls)

	_, err := Lookup(context.Background(), r, cache, Coordinates{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, r.calls)
}

func TestLookup_SeededAndErrors(t *testing.T) {
	cache := aggregate.NewPartitionCache()
	pt := Coordinates{Latitude: 10, Longitude: 20}
	Remember(cache, pt, Location{City: "X", County: "Y", State: "Z"})

	r := &countingResolver{err: errors.New("boom")}
	loc, err := Lookup(context.Background(), r, cache, pt)
	require.NoError(t, err)
	assert.Equal(t, "Y", loc.County)
	assert.Zero(t, r.calls)

	_, err = Lookup(context.Background(), r, cache, Coordinates{Latitude: 1})
	require.Error(t, err)
	_, ok := Cached(cache, Coordinates{Latitude: 1})
	assert.False(t, ok, "failures are not cached")
}
