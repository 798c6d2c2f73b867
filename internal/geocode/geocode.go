// Package geocode resolves coordinates to a city, county and state through
// public reverse-geocoding services.
//
// Resolvers own their throttling and retry policy. Lookup adds a per-save
// cache on top so each distinct coordinate pair is resolved at most once.
package geocode

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/metrics"
	"github.com/CThaw90/refocus-dataset/internal/records"
)

// NotAvailable fills location parts a service could not provide.
const NotAvailable = "N/A"

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// ParseCoordinates converts raw latitude and longitude values. Both must be
// numeric.
func ParseCoordinates(lat, lon any) (Coordinates, bool) {
	la, ok1 := records.Float(lat)
	lo, ok2 := records.Float(lon)
	if !ok1 || !ok2 {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: la, Longitude: lo}, true
}

// Key renders the point as "lat,lon" using the shortest exact decimal form,
// so the same point read from a feed or from the database keys identically.
func (c Coordinates) Key() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

func (c Coordinates) String() string { return c.Key() }

// Location is the administrative area containing a point.
type Location struct {
	City   string
	County string
	State  string
}

// Resolver reverse-geocodes a point.
type Resolver interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	Resolve(ctx context.Context, c Coordinates) (Location, error)
}

const cacheKey = "location"

func partitionKey(c Coordinates) string { return "geo:" + c.Key() }

// Lookup returns the normalized location of c, consulting cache first and
// remembering fresh results in it.
func Lookup(ctx context.Context, r Resolver, cache *aggregate.PartitionCache, c Coordinates) (Location, error) {
	if loc, ok := Cached(cache, c); ok {
		return loc, nil
	}
	loc, err := r.Resolve(ctx, c)
	metrics.RecordLookup(r.Name(), err)
	if err != nil {
		return Location{}, fmt.Errorf("geocode: %s %s: %w", r.Name(), c, err)
	}
	loc = Normalize(loc)
	Remember(cache, c, loc)
	return loc, nil
}

// Cached returns a location previously stored for c.
func Cached(cache *aggregate.PartitionCache, c Coordinates) (Location, bool) {
	if cache == nil {
		return Location{}, false
	}
	v, ok := cache.Partition(partitionKey(c)).Value(cacheKey)
	if !ok {
		return Location{}, false
	}
	loc, ok := v.(Location)
	return loc, ok
}

// Remember stores loc for c. Feeds use it to seed the cache with locations
// already known to the database.
func Remember(cache *aggregate.PartitionCache, c Coordinates, loc Location) {
	if cache == nil {
		return
	}
	cache.Partition(partitionKey(c)).SetValue(cacheKey, loc)
}

// Normalize reconciles provider naming with the county reference table:
// "City and County of X" becomes "X", the District of Columbia is reported
// as county "District of Columbia" in state "Washington, DC", and the two
// "Saint" counties use the "St." spelling. Empty parts become NotAvailable.
func Normalize(loc Location) Location {
	loc.County = strings.ReplaceAll(loc.County, "City and County of ", "")
	switch {
	case loc.State == "District of Columbia":
		loc.State = "Washington, DC"
		loc.County = "District of Columbia"
		loc.City = "Washington"
	case loc.County == "Saint Joseph County":
		loc.County = "St. Joseph County"
		loc.State = "Indiana"
	case loc.County == "Saint Clair County":
		loc.County = "St. Clair County"
	}
	loc.City = orNotAvailable(loc.City)
	loc.County = orNotAvailable(loc.County)
	loc.State = orNotAvailable(loc.State)
	return loc
}

func orNotAvailable(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NotAvailable
	}
	return s
}
