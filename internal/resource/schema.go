package resource

import (
	"strings"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

// referenceTables are written outside any feed mapping.
var referenceTables = []storage.Table{
	{Name: countyTable, Columns: []storage.Column{
		{Name: "id", Type: storage.TypeSerial},
		{Name: "county", Type: storage.TypeText},
		{Name: "geo_id", Type: storage.TypeText},
		{Name: "state", Type: storage.TypeText},
	}},
	{Name: coordinatesTable, Columns: []storage.Column{
		{Name: "id", Type: storage.TypeSerial},
		{Name: "longitude", Type: storage.TypeFloat},
		{Name: "latitude", Type: storage.TypeFloat},
		{Name: "city", Type: storage.TypeText},
		{Name: "county_location_data_id", Type: storage.TypeInteger},
	}},
}

// Tables describes every table the registered feeds write to, for
// bootstrapping an empty database. Feed tables get a serial id followed by
// the union of their mapping columns in first-seen order.
func Tables() []storage.Table {
	out := append([]storage.Table(nil), referenceTables...)
	index := map[string]int{}
	for i, t := range out {
		index[t.Name] = i
	}

	for _, e := range registry {
		m := e.build(Deps{}).Mapping()
		i, ok := index[m.Table]
		if !ok {
			i = len(out)
			index[m.Table] = i
			out = append(out, storage.Table{
				Name:    m.Table,
				Columns: []storage.Column{{Name: "id", Type: storage.TypeSerial}},
			})
		}
		for _, col := range m.Columns() {
			if hasColumn(out[i], col) {
				continue
			}
			out[i].Columns = append(out[i].Columns, storage.Column{Name: col, Type: columnType(col)})
		}
	}
	return out
}

func hasColumn(t storage.Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

var (
	timestampColumns = map[string]bool{"date": true, "mmwr_date": true, "last_updated": true}
	integerColumns   = map[string]bool{
		"mmwr_year": true, "mmwr_week": true,
		"cases": true, "deaths": true, "tests": true, "population": true,
		"age": true, "signs_of_mental_illness": true, "body_camera": true, "is_geocoding_exact": true,
		"filings": true, "hotspot": true,
	}
	floatColumns = map[string]bool{
		"cumulative_rate": true, "weekly_rate": true, "positivity_rate": true,
		"filings_avg": true, "longitude": true, "latitude": true,
	}
)

// columnType infers a column's type from its name. Column names are shared
// across feeds, so one rule set covers every table; anything unknown is text.
func columnType(col string) storage.ColumnType {
	switch {
	case timestampColumns[col]:
		return storage.TypeTimestamp
	case integerColumns[col]:
		return storage.TypeInteger
	case floatColumns[col],
		strings.HasPrefix(col, "pct_change_"),
		strings.HasSuffix(col, "_mean"),
		strings.HasSuffix(col, "_per_million"):
		return storage.TypeFloat
	case strings.HasSuffix(col, "_change"),
		strings.HasPrefix(col, "vaccines_"):
		return storage.TypeInteger
	}
	return storage.TypeText
}
