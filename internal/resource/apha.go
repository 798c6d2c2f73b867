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
	NameAPHARacismDeclarations = "apha_racism_declarations"

	aphaDeclarationsURL = "https://docs.google.com/spreadsheets/d/e/" +
		"2PACX-1vRkLVhZFb2K0K9LWxxrZujKaGP1qcpsbZ9gCtAfM6eHGZuNa_qxBHwKpSPYfAiPSoMChphBJsMd4o7Z/pub" +
		"?gid=1592883182&single=true&output=csv"
)

// The published sheet has banner rows above this header.
var aphaColumns = []string{
	"State", "Region", "Address", "Latitude", "Longitude", "Type", "Sub-Type", "Entity",
	"Political Affiliation", "Declaration", "Date of Declaration", "Link", "Notes",
}

// APHARacismDeclarations is the APHA map of declarations of racism as a
// public health crisis. City and county come from Nominatim.
type APHARacismDeclarations struct {
	*source
	deps Deps
	refs geoRefs
}

// NewAPHARacismDeclarations returns the declarations feed.
func NewAPHARacismDeclarations(d Deps) *APHARacismDeclarations {
	return newAPHARacismDeclarations(d, aphaDeclarationsURL)
}

func newAPHARacismDeclarations(d Deps, url string) *APHARacismDeclarations {
	a := &APHARacismDeclarations{deps: d}
	a.source = &source{
		name: NameAPHARacismDeclarations,
		mapping: transform.Mapping{
			Table: "apha_map",
			Fields: []transform.FieldSpec{
				transform.Derived("Date of Declaration", transform.ISODate).As("date"),
				transform.Field("Longitude").As("longitude"),
				transform.Field("Latitude").As("latitude"),
				transform.Derived("", a.city).As("city"),
				transform.Derived("", a.county).As("county"),
				transform.Derived("State", stateFromAbbreviation).As("state"),
				transform.Field("Sub-Type").As("entity_type"),
				transform.Field("Type").As("entity_geo"),
				transform.Field("Entity").As("entity_name"),
				transform.Field("Declaration").As("link_to_declaration"),
			},
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			return fetchCSV(ctx, d.HTTP, url, feed.CSVOptions{Fields: aphaColumns, SeekHeader: true})
		},
	}
	return a
}

// Prepare loads the county and coordinate reference tables.
func (a *APHARacismDeclarations) Prepare(ctx context.Context, store pipeline.Store, cache *aggregate.PartitionCache) error {
	return a.refs.load(ctx, store, cache)
}

// Finish stores the points matched to a county during the save.
func (a *APHARacismDeclarations) Finish(ctx context.Context, store pipeline.Store) error {
	return a.refs.coords.flush(ctx, store)
}

func (a *APHARacismDeclarations) city(ctx context.Context, rec records.Record, _ string, cache *aggregate.PartitionCache) (any, error) {
	_, loc, ok := locate(ctx, a.deps.Nominatim, cache, rec, "Latitude", "Longitude", a.deps.logger())
	if !ok {
		return geocode.NotAvailable, nil
	}
	return loc.City, nil
}

// county yields the resolved county. When exactly one stored county in
// the resolved state starts with that name, the point is queued for
// county_coordinates_data.
func (a *APHARacismDeclarations) county(ctx context.Context, rec records.Record, _ string, cache *aggregate.PartitionCache) (any, error) {
	pt, loc, ok := locate(ctx, a.deps.Nominatim, cache, rec, "Latitude", "Longitude", a.deps.logger())
	if !ok {
		return geocode.NotAvailable, nil
	}
	if matches := a.refs.index().findPrefix(loc.County, loc.State); len(matches) == 1 {
		a.refs.coords.add(pt, loc.City, matches[0].ID)
	}
	return loc.County, nil
}
