package resource

import (
	"context"
	"iter"
	"strings"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/feed"
	"github.com/CThaw90/refocus-dataset/internal/geocode"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

const (
	NameELabWeeklyEvictions = "elab_weekly_evictions"

	elabWeeklyEvictionsURL = "https://eviction-lab-data-downloads.s3.amazonaws.com/ets/all_sites_weekly_2020_2021.csv"
)

// ELabWeeklyEvictions is the Eviction Lab weekly filings export. The
// county is resolved from the census tract GEOID, falling back to a city
// already geocoded by another feed.
type ELabWeeklyEvictions struct {
	*source
	refs geoRefs
}

// NewELabWeeklyEvictions returns the weekly evictions feed.
func NewELabWeeklyEvictions(d Deps) *ELabWeeklyEvictions {
	return newELabWeeklyEvictions(d, elabWeeklyEvictionsURL)
}

func newELabWeeklyEvictions(d Deps, url string) *ELabWeeklyEvictions {
	e := &ELabWeeklyEvictions{}
	e.source = &source{
		name: NameELabWeeklyEvictions,
		mapping: transform.Mapping{
			Table: "weekly_evictions",
			Fields: []transform.FieldSpec{
				transform.Derived("week_date", transform.ISODate).As("date"),
				transform.Field("week"),
				transform.Derived("city", transform.Value(func(v any) any {
					city, _ := splitCityState(v)
					return city
				})),
				transform.Derived("GEOID", e.county).As("county"),
				transform.Derived("city", transform.Value(func(v any) any {
					_, st := splitCityState(v)
					return st
				})).As("state"),
				transform.Field("racial_majority"),
				transform.Derived("filings_2020", transform.EnsureInt).As("filings"),
				transform.Derived("filings_avg", transform.EnsureFloat),
				transform.Derived("last_updated", transform.ISODate),
				transform.Field("GEOID").As("geo_id"),
			},
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			return fetchCSV(ctx, d.HTTP, url, feed.CSVOptions{})
		},
	}
	return e
}

// Prepare loads the county and coordinate reference tables.
func (e *ELabWeeklyEvictions) Prepare(ctx context.Context, store pipeline.Store, cache *aggregate.PartitionCache) error {
	return e.refs.load(ctx, store, cache)
}

func (e *ELabWeeklyEvictions) county(_ context.Context, rec records.Record, source string, _ *aggregate.PartitionCache) (any, error) {
	ix := e.refs.index()
	if geoID := rec.String(source); len(geoID) >= 5 && isDigits(geoID[:5]) {
		if c, ok := ix.byGeoID[geoID[:5]]; ok {
			return c.County, nil
		}
	}
	city, st := splitCityState(rec["city"])
	if c, ok := e.refs.cities[countyKey(city, st)]; ok {
		return c.County, nil
	}
	return geocode.NotAvailable, nil
}

// splitCityState splits "Austin, TX" into "Austin" and the state name.
func splitCityState(v any) (city, state string) {
	s, _ := v.(string)
	if s == "" {
		return "", geocode.NotAvailable
	}
	city, st, found := strings.Cut(s, ",")
	if !found {
		return strings.TrimSpace(city), geocode.NotAvailable
	}
	return strings.TrimSpace(city), StateName(strings.TrimSpace(st))
}
