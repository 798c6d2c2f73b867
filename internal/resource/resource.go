// Package resource declares the public feeds refocus ingests: where each one
// is downloaded from, how its records map onto table columns, and which
// reference data it needs from the database.
package resource

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/CThaw90/refocus-dataset/internal/datasource/httpds"
	"github.com/CThaw90/refocus-dataset/internal/feed"
	"github.com/CThaw90/refocus-dataset/internal/geocode"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

// Deps are the collaborators shared by every feed.
type Deps struct {
	HTTP      *httpds.Client
	FCC       geocode.Resolver
	Nominatim geocode.Resolver
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// entry is one registered feed.
type entry struct {
	name string
	// standard feeds run when no explicit selection is made.
	standard bool
	build    func(Deps) pipeline.Feed
}

// registry lists feeds in run order. County reference data comes first
// because the geocoded feeds resolve against it.
var registry = []entry{
	{NameCensusCountyGeoCodes, true, func(d Deps) pipeline.Feed { return NewCensusCountyGeoCodes(d) }},
	{NameCDCHospitalizations, true, func(d Deps) pipeline.Feed { return NewCDCHospitalizations(d) }},
	{NameKFFStateTrends, true, func(d Deps) pipeline.Feed { return NewKFFStateTrends(d) }},
	{NameCDCStateTrends, false, func(d Deps) pipeline.Feed { return NewCDCStateTrends(d) }},
	{NameWaPoPoliceShootings, true, func(d Deps) pipeline.Feed { return NewWaPoPoliceShootings(d) }},
	{NameAPHARacismDeclarations, true, func(d Deps) pipeline.Feed { return NewAPHARacismDeclarations(d) }},
	{NameELabWeeklyEvictions, true, func(d Deps) pipeline.Feed { return NewELabWeeklyEvictions(d) }},
	{NameGoogleMobility, true, func(d Deps) pipeline.Feed { return NewGoogleMobility(d) }},
}

// Names lists every known feed in run order.
func Names() []string {
	out := make([]string, len(registry))
	for i, e := range registry {
		out[i] = e.name
	}
	return out
}

// Standard lists the feeds run when none are selected. cdc_state_trends is
// opt-in because it fills the same table as kff_state_trends.
func Standard() []string {
	var out []string
	for _, e := range registry {
		if e.standard {
			out = append(out, e.name)
		}
	}
	return out
}

// Build constructs the named feeds in registry order. An empty selection
// builds the standard set.
func Build(d Deps, names []string) ([]pipeline.Feed, error) {
	if len(names) == 0 {
		names = Standard()
	}
	for _, n := range names {
		if !slices.Contains(Names(), n) {
			return nil, fmt.Errorf("resource: unknown feed %q", n)
		}
	}
	var out []pipeline.Feed
	for _, e := range registry {
		if slices.Contains(names, e.name) {
			out = append(out, e.build(d))
		}
	}
	return out, nil
}

func fetchCSV(ctx context.Context, c *httpds.Client, url string, opt feed.CSVOptions) (iter.Seq2[records.Record, error], error) {
	body, err := c.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return feed.CSV(bytes.NewReader(body), opt), nil
}

// source is the common Feed implementation: a name, a mapping and a fetch
// function.
type source struct {
	name    string
	mapping transform.Mapping
	fetch   func(ctx context.Context) (iter.Seq2[records.Record, error], error)
}

func (s *source) Name() string               { return s.name }
func (s *source) Mapping() transform.Mapping { return s.mapping }
func (s *source) Records(ctx context.Context) (iter.Seq2[records.Record, error], error) {
	return s.fetch(ctx)
}
