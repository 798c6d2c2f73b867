package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

func TestTables_CoverEveryMapping(t *testing.T) {
	tables := map[string]storage.Table{}
	for _, tbl := range Tables() {
		_, dup := tables[tbl.Name]
		require.False(t, dup, "table %s listed twice", tbl.Name)
		tables[tbl.Name] = tbl
	}

	for _, e := range registry {
		m := e.build(Deps{}).Mapping()
		tbl, ok := tables[m.Table]
		require.True(t, ok, "%s writes to unknown table %s", e.name, m.Table)
		for _, col := range m.Columns() {
			assert.True(t, hasColumn(tbl, col), "%s.%s missing", m.Table, col)
		}
	}
	assert.Contains(t, tables, countyTable)
	assert.Contains(t, tables, coordinatesTable)
}

func TestTables_SharedTableMergesColumns(t *testing.T) {
	var trends storage.Table
	for _, tbl := range Tables() {
		if tbl.Name == "state_trend_data" {
			trends = tbl
		}
	}
	require.NotEmpty(t, trends.Columns)
	assert.Equal(t, storage.Column{Name: "id", Type: storage.TypeSerial}, trends.Columns[0])
	// from kff_state_trends
	assert.True(t, hasColumn(trends, "vaccines_two_dose"))
	// only cdc_state_trends writes the unsmoothed rate
	assert.True(t, hasColumn(trends, "positivity_rate"))

	seen := map[string]bool{}
	for _, c := range trends.Columns {
		assert.False(t, seen[c.Name], "column %s repeated", c.Name)
		seen[c.Name] = true
	}
}

func TestColumnType(t *testing.T) {
	tests := map[string]storage.ColumnType{
		"date":                      storage.TypeTimestamp,
		"mmwr_week":                 storage.TypeInteger,
		"cases_change":              storage.TypeInteger,
		"parks_change":              storage.TypeInteger,
		"pct_change_weekly_cases_7": storage.TypeFloat,
		"cases_7_day_mean":          storage.TypeFloat,
		"tests_per_million":         storage.TypeFloat,
		"vaccines_one_dose":         storage.TypeInteger,
		"latitude":                  storage.TypeFloat,
		"county":                    storage.TypeText,
	}
	for col, want := range tests {
		assert.Equal(t, want, columnType(col), col)
	}
}

func TestTables_CreateOnSQLite(t *testing.T) {
	ctx := context.Background()
	s := storage.NewSession(storage.Config{Driver: "sqlite", Database: ":memory:"}, quiet())
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.CreateTables(ctx, Tables()...))
	require.NoError(t, s.CreateTables(ctx, Tables()...), "creating twice is a no-op")

	require.NoError(t, s.Insert(ctx, countyTable, []string{"county", "geo_id", "state"}, []any{"Travis County", "48453", "Texas"}))
	rows, err := s.Select(ctx, countyTable, []string{"id", "county"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Travis County"}}, rows)

	for _, tbl := range Tables() {
		_, err := s.Select(ctx, tbl.Name, nil, "", 1)
		assert.NoError(t, err, tbl.Name)
	}
}
