package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/CThaw90/refocus-dataset/internal/metrics"
)

// MaxStatementLength bounds the text of a coalesced INSERT. A row is only
// appended to the pending statement when the result stays below it.
const MaxStatementLength = 20000

// Execer is the slice of *sql.Tx / *sql.DB the writer needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// BatchStats counts the work a BatchWriter has done.
type BatchStats struct {
	Statements int64
	Rows       int64
}

// pendingBatch is the single open multi-row INSERT.
type pendingBatch struct {
	table   string
	columns []string
	rows    int
	args    []any
	sql     strings.Builder
}

// BatchWriter coalesces consecutive rows for the same table and column list
// into one multi-row INSERT. Rows are written in the order they are
// appended. Not safe for concurrent use.
type BatchWriter struct {
	exec    Execer
	dialect Dialect
	logger  *slog.Logger
	maxLen  int

	pending *pendingBatch
	stats   BatchStats
}

// NewBatchWriter returns a writer that executes statements on exec.
func NewBatchWriter(exec Execer, d Dialect, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{exec: exec, dialect: d, logger: logger, maxLen: MaxStatementLength}
}

// Append adds one row. When the row cannot join the pending statement
// (different table, different columns, the statement would reach
// MaxStatementLength, or the dialect's row or parameter cap) the pending
// statement is flushed first.
//
// A row whose own single-row statement already exceeds the limit is still
// written alone; it cannot be split further.
func (w *BatchWriter) Append(ctx context.Context, table string, columns []string, values []any) error {
	if len(columns) == 0 || len(columns) != len(values) {
		return fmt.Errorf("%w: %d columns, %d values for %s", ErrArityMismatch, len(columns), len(values), table)
	}
	for {
		if w.pending == nil {
			w.start(table, columns, values)
			return nil
		}
		if w.pending.table == table && slices.Equal(w.pending.columns, columns) {
			group := w.dialect.valuesGroup(len(w.pending.args)+1, len(values))
			if w.pending.sql.Len()+len(", ")+len(group) < w.maxLen &&
				w.dialect.fits(w.pending.rows+1, len(w.pending.args)+len(values)) {
				w.pending.sql.WriteString(", ")
				w.pending.sql.WriteString(group)
				w.pending.args = append(w.pending.args, values...)
				w.pending.rows++
				return nil
			}
		}
		if err := w.Flush(ctx); err != nil {
			return err
		}
	}
}

func (w *BatchWriter) start(table string, columns []string, values []any) {
	p := &pendingBatch{
		table:   table,
		columns: slices.Clone(columns),
		rows:    1,
		args:    append(make([]any, 0, len(values)*8), values...),
	}
	p.sql.WriteString(w.dialect.insertPrefix(table, columns))
	p.sql.WriteString(w.dialect.valuesGroup(1, len(values)))
	w.pending = p
}

// Flush executes the pending statement, if any. The pending batch is
// cleared whether or not execution succeeds.
func (w *BatchWriter) Flush(ctx context.Context) error {
	p := w.pending
	if p == nil {
		return nil
	}
	w.pending = nil

	query := p.sql.String()
	_, err := w.exec.ExecContext(ctx, query, p.args...)
	metrics.RecordStatement(p.table, p.rows, err)
	if err != nil {
		w.logger.Error("storage: insert failed", "table", p.table, "rows", p.rows, "bytes", len(query), "err", err)
		return fmt.Errorf("storage: insert into %s (%d rows): %w", p.table, p.rows, err)
	}
	w.stats.Statements++
	w.stats.Rows += int64(p.rows)
	w.logger.Debug("storage: flushed batch", "table", p.table, "rows", p.rows, "bytes", len(query), "total_rows", w.stats.Rows)
	return nil
}

// Discard drops the pending statement without executing it.
func (w *BatchWriter) Discard() int {
	if w.pending == nil {
		return 0
	}
	n := w.pending.rows
	w.pending = nil
	return n
}

// Pending reports the table and row count of the open statement.
func (w *BatchWriter) Pending() (table string, rows int) {
	if w.pending == nil {
		return "", 0
	}
	return w.pending.table, w.pending.rows
}

// Stats returns the statements executed and rows written so far.
func (w *BatchWriter) Stats() BatchStats { return w.stats }
