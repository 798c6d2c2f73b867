// Package storage owns the relational sink: connection lifecycle, explicit
// and auto-commit transactions, and coalesced multi-row INSERTs.
//
// A Session moves between two states, idle and transaction-active. Inserts
// made inside an explicit transaction are buffered by a BatchWriter and only
// flushed when the table or column list changes, when a statement would grow
// past MaxStatementLength, or on Commit. An Insert made while idle opens and
// commits its own transaction.
//
// Backends live in subpackages and register a Dialect from init:
//
//	import _ "github.com/CThaw90/refocus-dataset/internal/storage/all"
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// openDB is a test seam over sql.Open.
var openDB = sql.Open

// pingTimeout bounds the connectivity check in Connect.
const pingTimeout = 10 * time.Second

// Session is a single-threaded handle on one database.
type Session struct {
	cfg    Config
	logger *slog.Logger

	dialect Dialect
	db      *sql.DB
	tx      *sql.Tx
	writer  *BatchWriter
	stats   BatchStats
}

// NewSession returns an unconnected session for cfg.
func NewSession(cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, logger: logger}
}

// Connect validates the configuration and opens the database. Missing
// parameters yield ErrConfiguration before any connection attempt; a second
// Connect yields ErrConnection. Both are logged.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		s.logger.Error("storage: cannot connect", "err", err)
		return err
	}
	if s.IsConnected() {
		err := fmt.Errorf("%w: already connected to %s", ErrConnection, s.cfg.Redacted())
		s.logger.Warn("storage: there is already an active connection", "target", s.cfg.Redacted())
		return err
	}

	d, err := LookupDialect(s.cfg.DriverOrDefault())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	dsn, err := d.DSN(s.cfg)
	if err != nil {
		s.logger.Error("storage: invalid connection parameters", "driver", d.Name, "err", err)
		return fmt.Errorf("%w: %s dsn: %w", ErrConfiguration, d.Name, err)
	}
	db, err := openDB(d.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrConnection, d.Name, err)
	}
	if d.Configure != nil {
		d.Configure(db)
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: ping %s: %w", ErrConnection, s.cfg.Redacted(), err)
	}

	s.dialect = d
	s.db = db
	s.logger.Info("storage: connected", "target", s.cfg.Redacted())
	return nil
}

// IsConnected reports whether Connect succeeded and Close has not been called.
func (s *Session) IsConnected() bool { return s.db != nil }

// InTransaction reports whether an explicit or auto transaction is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

// Dialect returns the dialect of the connected backend.
func (s *Session) Dialect() Dialect { return s.dialect }

// Begin opens a transaction and a fresh BatchWriter over it.
func (s *Session) Begin(ctx context.Context) error {
	if !s.IsConnected() {
		s.logger.Warn("storage: there is no active connection to a database")
		return fmt.Errorf("%w: begin while disconnected", ErrConnection)
	}
	if s.InTransaction() {
		s.logger.Warn("storage: there is already an active transaction")
		return fmt.Errorf("%w: transaction already active", ErrTransactionState)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	s.tx = tx
	s.writer = NewBatchWriter(tx, s.dialect, s.logger)
	return nil
}

// Insert writes one row. Inside an explicit transaction the row is
// buffered; otherwise the row is written and committed in its own
// transaction.
func (s *Session) Insert(ctx context.Context, table string, columns []string, values []any) error {
	if len(columns) == 0 || len(columns) != len(values) {
		return fmt.Errorf("%w: %d columns, %d values for %s", ErrArityMismatch, len(columns), len(values), table)
	}
	auto := !s.InTransaction()
	if auto {
		if err := s.Begin(ctx); err != nil {
			return err
		}
	}
	if err := s.writer.Append(ctx, table, columns, values); err != nil {
		if auto {
			_ = s.Rollback()
		}
		return err
	}
	if auto {
		return s.Commit(ctx)
	}
	return nil
}

// Commit flushes the pending batch and commits. A failed flush rolls the
// transaction back. Either way the session returns to idle.
func (s *Session) Commit(ctx context.Context) error {
	if !s.IsConnected() {
		s.logger.Warn("storage: there is no active connection to a database")
		return fmt.Errorf("%w: commit while disconnected", ErrConnection)
	}
	if !s.InTransaction() {
		s.logger.Warn("storage: there is no active transaction")
		return fmt.Errorf("%w: commit without transaction", ErrTransactionState)
	}
	if err := s.writer.Flush(ctx); err != nil {
		rbErr := s.Rollback()
		return errors.Join(err, rbErr)
	}
	err := s.tx.Commit()
	s.release()
	if err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	return nil
}

// Rollback discards the pending batch and aborts the transaction. It is a
// no-op when idle.
func (s *Session) Rollback() error {
	if !s.InTransaction() {
		return nil
	}
	if n := s.writer.Discard(); n > 0 {
		s.logger.Warn("storage: discarded pending rows", "rows", n)
	}
	err := s.tx.Rollback()
	s.release()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("storage: rollback: %w", err)
	}
	return nil
}

func (s *Session) release() {
	if s.writer != nil {
		st := s.writer.Stats()
		s.stats.Statements += st.Statements
		s.stats.Rows += st.Rows
	}
	s.tx = nil
	s.writer = nil
}

// Stats returns statements executed and rows written by finished
// transactions.
func (s *Session) Stats() BatchStats { return s.stats }

// Select runs SELECT <fields|*> FROM table [WHERE where] [LIMIT limit] and
// returns every row. []byte values are returned as strings. Selecting while
// a transaction is active logs a warning and returns nothing, without error,
// so reads never interleave with a pending batch.
func (s *Session) Select(ctx context.Context, table string, fields []string, where string, limit int) ([][]any, error) {
	if !s.IsConnected() {
		s.logger.Warn("storage: there is no active connection to a database")
		return nil, fmt.Errorf("%w: select while disconnected", ErrConnection)
	}
	if s.InTransaction() {
		s.logger.Warn("storage: cannot select while a transaction is in progress", "table", table)
		return nil, nil
	}

	query := s.dialect.SelectSQL(table, fields, where, limit)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: select from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("storage: select columns: %w", err)
	}
	var out [][]any
	for rows.Next() {
		row := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("storage: select scan: %w", err)
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: select rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement outside the batching path (DDL, maintenance). It
// uses the open transaction when there is one, after flushing it.
func (s *Session) Exec(ctx context.Context, query string, args ...any) error {
	if !s.IsConnected() {
		return fmt.Errorf("%w: exec while disconnected", ErrConnection)
	}
	var ex Execer = s.db
	if s.InTransaction() {
		if err := s.writer.Flush(ctx); err != nil {
			return err
		}
		ex = s.tx
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("storage: exec: %w", err)
	}
	return nil
}

// Close rolls back any open transaction and closes the connection. It is
// safe to call more than once.
func (s *Session) Close() error {
	if !s.IsConnected() {
		return nil
	}
	rbErr := s.Rollback()
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errors.Join(rbErr, fmt.Errorf("storage: close: %w", err))
	}
	return rbErr
}
