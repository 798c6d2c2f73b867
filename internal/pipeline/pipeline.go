// Package pipeline drives feeds through the transform engine into a storage
// session: one transaction per feed, records in arrival order.
package pipeline

import (
	"context"
	"iter"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/records"
	"github.com/CThaw90/refocus-dataset/internal/transform"
)

// Feed is one public data source and the table it fills.
type Feed interface {
	// Name is the stable identifier used on the command line and in metrics.
	Name() string
	Mapping() transform.Mapping
	// Records downloads the source and returns its records. The sequence is
	// consumed once.
	Records(ctx context.Context) (iter.Seq2[records.Record, error], error)
}

// Preparer is implemented by feeds that read reference data before the save
// transaction opens, typically to seed the partition cache.
type Preparer interface {
	Prepare(ctx context.Context, store Store, cache *aggregate.PartitionCache) error
}

// Finisher is implemented by feeds that write side tables after the main
// transaction commits.
type Finisher interface {
	Finish(ctx context.Context, store Store) error
}

// Store is the part of storage.Session a save needs.
type Store interface {
	Begin(ctx context.Context) error
	Insert(ctx context.Context, table string, columns []string, values []any) error
	Commit(ctx context.Context) error
	Rollback() error
	Select(ctx context.Context, table string, fields []string, where string, limit int) ([][]any, error)
}
