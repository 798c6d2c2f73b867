package mssql

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

func TestDSN(t *testing.T) {
	dsn, err := DSN(storage.Config{
		Host: "sql", Port: 1433, User: "sa", Password: "Pa55;word", Database: "refocus",
		Params: map[string]string{"encrypt": "disable"},
	})
	require.NoError(t, err)

	p, err := msdsn.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sql", p.Host)
	assert.Equal(t, uint64(1433), p.Port)
	assert.Equal(t, "sa", p.User)
	assert.Equal(t, "Pa55;word", p.Password)
	assert.Equal(t, "refocus", p.Database)
}

func TestSelectUsesTop(t *testing.T) {
	assert.Equal(t, "SELECT TOP 10 [a] FROM [dbo].[t] WHERE a IS NOT NULL",
		Dialect.SelectSQL("dbo.t", []string{"a"}, "a IS NOT NULL", 10))
	assert.Equal(t, "SELECT * FROM [t]", Dialect.SelectSQL("t", nil, "", 0))
	assert.Equal(t, "[a]]b]", quoteIdent("a]b"))
}

func TestRegistered(t *testing.T) {
	d, err := storage.LookupDialect("mssql")
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", d.DriverName)
	assert.Equal(t, "@p3", d.Placeholder(3))
}

func TestCreateTableSQL(t *testing.T) {
	got, err := Dialect.CreateTableSQL(storage.Table{Name: "weekly_evictions", Columns: []storage.Column{
		{Name: "id", Type: storage.TypeSerial},
		{Name: "city", Type: storage.TypeText},
		{Name: "filings", Type: storage.TypeInteger},
		{Name: "last_updated", Type: storage.TypeTimestamp},
	}})
	require.NoError(t, err)
	assert.Equal(t, "IF OBJECT_ID(N'weekly_evictions', N'U') IS NULL CREATE TABLE [weekly_evictions] "+
		"([id] BIGINT IDENTITY(1,1) PRIMARY KEY, [city] NVARCHAR(MAX), [filings] BIGINT, [last_updated] DATETIME2)", got)
}

type argCounter struct{ params, rows []int }

func (c *argCounter) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	c.params = append(c.params, len(args))
	c.rows = append(c.rows, strings.Count(query, "(@p"))
	return nil, nil
}

func TestBatchWriter_RespectsServerLimits(t *testing.T) {
	for _, width := range []int{1, 5} {
		ex := &argCounter{}
		w := storage.NewBatchWriter(ex, Dialect, slog.New(slog.NewTextHandler(io.Discard, nil)))
		cols := make([]string, width)
		for i := range cols {
			cols[i] = "c" + strconv.Itoa(i)
		}
		const n = 5000
		for i := 0; i < n; i++ {
			vals := make([]any, width)
			for j := range vals {
				vals[j] = i
			}
			require.NoError(t, w.Append(context.Background(), "t", cols, vals))
		}
		require.NoError(t, w.Flush(context.Background()))

		total := 0
		for i, p := range ex.params {
			assert.LessOrEqual(t, p, 2100, "width %d statement %d", width, i)
			assert.LessOrEqual(t, ex.rows[i], 1000, "width %d statement %d", width, i)
			total += p
		}
		assert.Equal(t, n*width, total, "width %d: every value is bound once", width)
		assert.Equal(t, int64(n), w.Stats().Rows)
	}
}
