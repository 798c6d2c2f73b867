package resource

import (
	"context"
	"iter"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/feed"
	"github.com/CThaw90/refocus-dataset/internal/geocode"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

const (
	NameWaPoPoliceShootings = "wapo_police_shootings"

	wapoPoliceShootingsURL = "https://raw.githubusercontent.com/washingtonpost/data-police-shootings/master/fatal-police-shootings-data.csv"
)

// WaPoPoliceShootings is the Washington Post fatal police shootings
// database. Each shooting's county is resolved through the FCC area API
// and matched against county_location_data; matched points are stored in
// county_coordinates_data after the save.
type WaPoPoliceShootings struct {
	*source
	deps Deps
	refs geoRefs
}

// NewWaPoPoliceShootings returns the police shootings feed.
func NewWaPoPoliceShootings(d Deps) *WaPoPoliceShootings {
	return newWaPoPoliceShootings(d, wapoPoliceShootingsURL)
}

func newWaPoPoliceShootings(d Deps, url string) *WaPoPoliceShootings {
	w := &WaPoPoliceShootings{deps: d}
	w.source = &source{
		name: NameWaPoPoliceShootings,
		mapping: transform.Mapping{
			Table: "police_shooting_data",
			Fields: []transform.FieldSpec{
				transform.Field("date"),
				transform.Field("name"),
				transform.Field("manner_of_death"),
				transform.Field("armed"),
				transform.Derived("age", transform.IntOrNull),
				transform.Field("gender"),
				transform.Field("race"),
				transform.Field("city"),
				transform.Derived("state", stateFromAbbreviation),
				transform.Derived("signs_of_mental_illness", transform.BoolToInt),
				transform.Field("threat_level"),
				transform.Field("flee"),
				transform.Derived("body_camera", transform.BoolToInt),
				transform.Derived("longitude", transform.EnsureFloat),
				transform.Derived("latitude", transform.EnsureFloat),
				transform.Derived("is_geocoding_exact", transform.BoolToInt),
				transform.Derived("id", w.county).As("county"),
			},
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			return fetchCSV(ctx, d.HTTP, url, feed.CSVOptions{})
		},
	}
	return w
}

// Prepare loads the county and coordinate reference tables.
func (w *WaPoPoliceShootings) Prepare(ctx context.Context, store pipeline.Store, cache *aggregate.PartitionCache) error {
	return w.refs.load(ctx, store, cache)
}

// Finish stores the points matched to a county during the save.
func (w *WaPoPoliceShootings) Finish(ctx context.Context, store pipeline.Store) error {
	return w.refs.coords.flush(ctx, store)
}

// county yields the stored county name when the FCC result matches a row
// of county_location_data, the FCC county name otherwise, and N/A when the
// point cannot be resolved.
func (w *WaPoPoliceShootings) county(ctx context.Context, rec records.Record, _ string, cache *aggregate.PartitionCache) (any, error) {
	pt, loc, ok := locate(ctx, w.deps.FCC, cache, rec, "latitude", "longitude", w.deps.logger())
	if !ok {
		return geocode.NotAvailable, nil
	}
	ix := w.refs.index()
	c, found := ix.find(loc.County, loc.State)
	if !found {
		c, found = ix.find(loc.County+" County", loc.State)
	}
	if !found {
		return loc.County, nil
	}
	w.refs.coords.add(pt, rec.String("city"), c.ID)
	return c.County, nil
}

// stateFromAbbreviation maps a postal code to the state name, N/A when
// unknown.
var stateFromAbbreviation = transform.Value(func(v any) any {
	s, _ := v.(string)
	return StateName(s)
})
