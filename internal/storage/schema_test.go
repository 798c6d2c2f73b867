package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

var counties = storage.Table{
	Name: "county_location_data",
	Columns: []storage.Column{
		{Name: "id", Type: storage.TypeSerial},
		{Name: "county", Type: storage.TypeText},
		{Name: "population", Type: storage.TypeInteger},
	},
}

func TestCreateTableSQL_Defaults(t *testing.T) {
	got, err := storage.Dialect{}.CreateTableSQL(storage.Table{
		Name:    "s.t",
		Columns: []storage.Column{{Name: "a", Type: storage.TypeFloat}, {Name: "b", Type: storage.TypeTimestamp}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS s.t (a DOUBLE PRECISION, b TIMESTAMP)", got)
}

func TestCreateTableSQL_Invalid(t *testing.T) {
	tests := []storage.Table{
		{Columns: []storage.Column{{Name: "a"}}},
		{Name: "t"},
		{Name: "t", Columns: []storage.Column{{Name: " "}}},
	}
	for _, tbl := range tests {
		_, err := storage.Dialect{}.CreateTableSQL(tbl)
		require.ErrorIs(t, err, storage.ErrConfiguration)
	}
}

func TestColumnType_String(t *testing.T) {
	assert.Equal(t, "serial", storage.TypeSerial.String())
	assert.Equal(t, "unknown", storage.ColumnType(99).String())
}

func TestSession_CreateTables(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTables(ctx, counties))
	require.NoError(t, s.CreateTables(ctx, counties), "existing tables are left alone")

	require.NoError(t, s.Insert(ctx, "county_location_data", []string{"county", "population"}, []any{"Travis County", 1290188}))
	require.NoError(t, s.Insert(ctx, "county_location_data", []string{"county", "population"}, []any{"Hays County", 241067}))
	rows, err := s.Select(ctx, "county_location_data", []string{"id", "county"}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1), "Travis County"}, {int64(2), "Hays County"}}, rows, "serial ids are assigned")

	require.NoError(t, s.Begin(ctx))
	require.ErrorIs(t, s.CreateTables(ctx, counties), storage.ErrTransactionState)
	require.NoError(t, s.Rollback())

	require.NoError(t, s.Close())
	require.ErrorIs(t, s.CreateTables(ctx, counties), storage.ErrConnection)
}
