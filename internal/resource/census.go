package resource

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/feed"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

const (
	NameCensusCountyGeoCodes = "census_county_geo_codes"

	censusCountyAdjacencyURL = "https://www2.census.gov/geo/docs/reference/county_adjacency.txt"
)

// The adjacency file lists each county followed by its neighbours; lines
// after the first of a group leave the county columns empty.
var censusAdjacencyFields = []string{"county_name", "county_geoid", "neighbor_name", "neighbor_geoid"}

var countyStatePattern = regexp.MustCompile(`^\w.*, \w{2}`)

// CensusCountyGeoCodes fills county_location_data from the Census county
// adjacency file. Counties already in the table, and repeats within the
// file, are skipped.
type CensusCountyGeoCodes struct {
	*source
	seen *transform.SeenSet
}

// NewCensusCountyGeoCodes returns the county reference feed.
func NewCensusCountyGeoCodes(d Deps) *CensusCountyGeoCodes {
	return newCensusCountyGeoCodes(d, censusCountyAdjacencyURL)
}

func newCensusCountyGeoCodes(d Deps, url string) *CensusCountyGeoCodes {
	c := &CensusCountyGeoCodes{seen: transform.NewSeenSet("county", "state")}
	c.source = &source{
		name: NameCensusCountyGeoCodes,
		mapping: transform.Mapping{
			Table: countyTable,
			Fields: []transform.FieldSpec{
				transform.Field("county"),
				transform.Field("geo_id"),
				transform.Field("state"),
			},
			Skip: func(rec records.Record) bool {
				if rec["county"] == nil {
					return true
				}
				return c.seen.SkipSeen()(rec)
			},
		},
		fetch: func(ctx context.Context) (iter.Seq2[records.Record, error], error) {
			rows, err := fetchCSV(ctx, d.HTTP, url, feed.CSVOptions{
				Fields:     censusAdjacencyFields,
				Comma:      '\t',
				LazyQuotes: true,
				TrimSpace:  true,
				Decoder:    charmap.CodePage437.NewDecoder(),
			})
			if err != nil {
				return nil, err
			}
			return countyRows(rows), nil
		},
	}
	return c
}

// Prepare seeds the seen set with the counties already stored.
func (c *CensusCountyGeoCodes) Prepare(ctx context.Context, store pipeline.Store, _ *aggregate.PartitionCache) error {
	c.seen = transform.NewSeenSet("county", "state")
	rows, err := store.Select(ctx, countyTable, []string{"county", "geo_id", "state"}, "", 0)
	if err != nil {
		return fmt.Errorf("load counties: %w", err)
	}
	for _, r := range rows {
		if len(r) == 3 {
			c.seen.AddValues(cell(r[0]), cell(r[2]))
		}
	}
	return nil
}

// countyRows reduces adjacency lines to {county, geo_id, state} records.
// county is nil when the line names no county.
func countyRows(rows iter.Seq2[records.Record, error]) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		for raw, err := range rows {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(parseAdjacency(raw), nil) {
				return
			}
		}
	}
}

func parseAdjacency(raw records.Record) records.Record {
	out := records.Record{"county": nil, "geo_id": nil, "state": nil}
	for _, f := range censusAdjacencyFields {
		v := strings.Trim(raw.String(f), `"`)
		if countyStatePattern.MatchString(v) {
			name, st, _ := strings.Cut(v, ",")
			out["county"] = name
			out["state"] = StateName(strings.TrimSpace(st))
			break
		}
	}
	for _, f := range censusAdjacencyFields {
		v := strings.Trim(raw.String(f), `"`)
		if v != "" && isDigits(v) {
			out["geo_id"] = v
			break
		}
	}
	return out
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
