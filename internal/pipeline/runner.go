package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/CThaw90/refocus-dataset/internal/metrics"
)

// Runner saves a list of feeds in order.
type Runner struct {
	Store         Store
	Feeds         []Feed
	Logger        *slog.Logger
	Clock         clockwork.Clock
	ProgressEvery int
}

// Report is the outcome of one RunOnce.
type Report struct {
	RunID    string
	Saves    []SaveStats
	Failed   []string
	Duration time.Duration
}

// RunOnce saves every feed in sequence. A failed feed is logged and the run
// moves on to the next one; the failures are returned joined. Cancellation
// stops the run.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	run := NewRun(r.Logger, r.Clock, r.ProgressEvery)
	start := run.Clock.Now()
	rep := Report{RunID: run.ID}

	var errs []error
	for _, f := range r.Feeds {
		st, err := run.Save(ctx, r.Store, f)
		rep.Saves = append(rep.Saves, st)
		if err != nil {
			run.Logger.Error("pipeline: feed failed", "feed", f.Name(), "err", err)
			rep.Failed = append(rep.Failed, f.Name())
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		run.Logger.Info(fmt.Sprintf("pipeline: %s took %.2f seconds", f.Name(), st.Duration.Seconds()))
	}

	rep.Duration = run.Clock.Since(start)
	err := errors.Join(errs...)
	metrics.RecordRun(err, rep.Duration)
	if ferr := metrics.Flush(); ferr != nil {
		run.Logger.Warn("pipeline: metrics flush failed", "err", ferr)
	}
	run.Logger.Info(fmt.Sprintf("pipeline: total time %.2f seconds", rep.Duration.Seconds()),
		"feeds", len(r.Feeds), "failed", len(rep.Failed))
	return rep, err
}

// Schedule runs immediately and then on every tick of the cron spec until
// ctx is canceled. A tick that arrives while a run is still going is
// skipped.
func (r *Runner) Schedule(ctx context.Context, spec string) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("pipeline: schedule %q: %w", spec, err)
	}

	cl := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(cron.WithLogger(cl))
	job := cron.FuncJob(func() {
		_, _ = r.RunOnce(ctx)
		logger.Info("pipeline: next run scheduled", "at", r.nextRun(sched).Format(time.RFC3339))
	})
	wrapped := cron.NewChain(cron.SkipIfStillRunning(cl)).Then(job)

	c.Schedule(sched, wrapped)
	c.Start()
	wrapped.Run()

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// nextRun is the first tick of sched after the runner's current time.
func (r *Runner) nextRun(sched cron.Schedule) time.Time {
	clock := r.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return sched.Next(clock.Now())
}
