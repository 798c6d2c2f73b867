package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/metrics"
)

// Run carries what is shared by every save of one run: an identifier, the
// clock and the logger. Per-save state lives in the save itself.
type Run struct {
	ID     string
	Clock  clockwork.Clock
	Logger *slog.Logger

	// ProgressEvery logs progress every N processed records; 0 disables it.
	ProgressEvery int
}

// NewRun starts a run with a fresh identifier. A nil clock means real time.
func NewRun(logger *slog.Logger, clock clockwork.Clock, progressEvery int) *Run {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Run{
		ID:            id,
		Clock:         clock,
		Logger:        logger.With("run", id),
		ProgressEvery: progressEvery,
	}
}

// SaveStats summarizes one save.
type SaveStats struct {
	Feed      string
	Processed int64
	Skipped   int64
	Inserted  int64
	Duration  time.Duration
}

// Save downloads f and writes every record inside a single transaction.
//
// The partition cache is created here and dropped on return, so windowed
// columns never leak between feeds or runs. Any read, transform or insert
// error rolls the transaction back and is returned; nothing of the feed is
// committed then.
func (r *Run) Save(ctx context.Context, store Store, f Feed) (stats SaveStats, err error) {
	name := f.Name()
	stats.Feed = name
	start := r.Clock.Now()
	log := r.Logger.With("feed", name)

	defer func() {
		stats.Duration = r.Clock.Since(start)
		metrics.RecordSave(name, err, stats.Duration)
		metrics.RecordRecords(name, metrics.KindProcessed, stats.Processed)
		metrics.RecordRecords(name, metrics.KindSkipped, stats.Skipped)
		if err == nil {
			metrics.RecordRecords(name, metrics.KindInserted, stats.Inserted)
		}
	}()

	m := f.Mapping()
	if err = m.Validate(); err != nil {
		return stats, fmt.Errorf("pipeline: %s: %w", name, err)
	}

	log.Info("pipeline: fetching")
	seq, err := f.Records(ctx)
	if err != nil {
		return stats, fmt.Errorf("pipeline: %s: fetch: %w", name, err)
	}

	cache := aggregate.NewPartitionCache()
	if p, ok := f.(Preparer); ok {
		if err = p.Prepare(ctx, store, cache); err != nil {
			return stats, fmt.Errorf("pipeline: %s: prepare: %w", name, err)
		}
	}

	if err = store.Begin(ctx); err != nil {
		return stats, fmt.Errorf("pipeline: %s: %w", name, err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := store.Rollback(); rbErr != nil {
				log.Error("pipeline: rollback failed", "err", rbErr)
			}
		}
	}()

	for rec, readErr := range seq {
		if readErr != nil {
			return stats, fmt.Errorf("pipeline: %s: read record %d: %w", name, stats.Processed+1, readErr)
		}
		if err = ctx.Err(); err != nil {
			return stats, err
		}
		stats.Processed++
		if m.ShouldSkip(rec) {
			stats.Skipped++
		} else {
			cols, vals, applyErr := m.Apply(ctx, rec, cache)
			if applyErr != nil {
				return stats, fmt.Errorf("pipeline: %s: record %d: %w", name, stats.Processed, applyErr)
			}
			if err = store.Insert(ctx, m.Table, cols, vals); err != nil {
				return stats, fmt.Errorf("pipeline: %s: record %d: %w", name, stats.Processed, err)
			}
			stats.Inserted++
		}
		if r.ProgressEvery > 0 && stats.Processed%int64(r.ProgressEvery) == 0 {
			log.Info("pipeline: progress", "processed", stats.Processed, "inserted", stats.Inserted, "elapsed", r.Clock.Since(start).Round(time.Millisecond))
		}
	}

	// Commit releases the transaction whether or not it succeeds.
	committed = true
	if err = store.Commit(ctx); err != nil {
		return stats, fmt.Errorf("pipeline: %s: %w", name, err)
	}

	if fin, ok := f.(Finisher); ok {
		if err = fin.Finish(ctx, store); err != nil {
			return stats, fmt.Errorf("pipeline: %s: finish: %w", name, err)
		}
	}

	log.Info("pipeline: saved",
		"table", m.Table,
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"inserted", stats.Inserted,
		"seconds", r.Clock.Since(start).Seconds(),
	)
	return stats, nil
}
