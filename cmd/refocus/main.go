// Command refocus downloads the public datasets behind the Refocus project
// and loads them into a SQL database.
//
// Usage:
//
//	refocus --env-file .env --feeds cdc_hospitalizations,kff_state_trends
//	refocus --schedule "0 6 * * *"
//	refocus --list
//	refocus --create-tables --feeds census_county_geo_codes
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/CThaw90/refocus-dataset/internal/config"
	"github.com/CThaw90/refocus-dataset/internal/datasource/httpds"
	"github.com/CThaw90/refocus-dataset/internal/geocode"
	"github.com/CThaw90/refocus-dataset/internal/logger"
	"github.com/CThaw90/refocus-dataset/internal/metrics"
	"github.com/CThaw90/refocus-dataset/internal/metrics/datadog"
	"github.com/CThaw90/refocus-dataset/internal/metrics/prompush"
	"github.com/CThaw90/refocus-dataset/internal/pipeline"
	"github.com/CThaw90/refocus-dataset/internal/resource"
	"github.com/CThaw90/refocus-dataset/internal/storage"

	// register every dialect; DB_DRIVER picks one at runtime.
	_ "github.com/CThaw90/refocus-dataset/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// options are the command-line flags. Flags that are set override the
// environment.
type options struct {
	envFile        string
	feeds          []string
	schedule       string
	verbose        bool
	createTables   bool
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string
	list           bool
	validate       bool
}

func parseFlags(args []string, stderr io.Writer) (options, *pflag.FlagSet, error) {
	var o options
	fs := pflag.NewFlagSet("refocus", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.envFile, "env-file", ".env", "dotenv file seeding unset environment variables")
	fs.StringSliceVar(&o.feeds, "feeds", nil, "feeds to run, comma separated (default: the standard set)")
	fs.StringVar(&o.schedule, "schedule", "", "cron expression; run repeatedly instead of once")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "enable debug logs")
	fs.BoolVar(&o.createTables, "create-tables", false, "create missing tables before loading")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: none, prometheus or datadog")
	fs.StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway base URL")
	fs.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address")
	fs.BoolVar(&o.list, "list", false, "list known feeds and exit")
	fs.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	err := fs.Parse(args)
	return o, fs, err
}

// apply copies the flags the user set onto s.
func (o options) apply(fs *pflag.FlagSet, s *config.Settings) {
	if fs.Changed("feeds") {
		s.Feeds = o.feeds
	}
	if fs.Changed("schedule") {
		s.Schedule = o.schedule
	}
	if fs.Changed("verbose") {
		s.Verbose = o.verbose
	}
	if fs.Changed("create-tables") {
		s.CreateTables = o.createTables
	}
	if fs.Changed("metrics-backend") {
		s.Metrics.Backend = o.metricsBackend
	}
	if fs.Changed("pushgateway-url") {
		s.Metrics.PushgatewayURL = o.pushgatewayURL
	}
	if fs.Changed("statsd-addr") {
		s.Metrics.StatsdAddr = o.statsdAddr
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, fs, err := parseFlags(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}

	if o.list {
		standard := resource.Standard()
		for _, name := range resource.Names() {
			mark := ""
			if !slices.Contains(standard, name) {
				mark = " (opt-in)"
			}
			fmt.Fprintf(stdout, "%s%s\n", name, mark)
		}
		return 0
	}

	settings, err := config.Load(o.envFile, fs.Changed("env-file"))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	o.apply(fs, &settings)

	issues := settings.Validate(resource.Names())
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "configuration is invalid")
		return 1
	}
	if o.validate {
		fmt.Fprintln(stdout, "configuration is valid")
		return 0
	}

	log := logger.NewWriter(stdout, settings.Verbose, false)
	if err := execute(ctx, settings, log); err != nil {
		log.Error("refocus: run failed", "err", err)
		return 1
	}
	return 0
}

// execute wires metrics, storage and feeds, then runs once or on schedule.
func execute(ctx context.Context, s config.Settings, log *slog.Logger) error {
	prev := metrics.Current()
	if err := installMetrics(s.Metrics, log); err != nil {
		log.Warn("metrics: backend unavailable; metrics disabled", "backend", s.Metrics.Backend, "err", err)
	}
	defer metrics.SetBackend(prev)

	store := storage.NewSession(s.DB, log)
	if err := store.Connect(ctx); err != nil {
		return err
	}
	defer store.Close()

	if s.CreateTables {
		if err := store.CreateTables(ctx, resource.Tables()...); err != nil {
			return err
		}
	}

	feeds, err := resource.Build(deps(s, log), s.Feeds)
	if err != nil {
		return err
	}
	names := make([]string, len(feeds))
	for i, f := range feeds {
		names[i] = f.Name()
	}
	log.Info("refocus: starting", "db", s.DB.Redacted(), "feeds", strings.Join(names, ","), "schedule", s.Schedule)

	runner := &pipeline.Runner{
		Store:         store,
		Feeds:         feeds,
		Logger:        log,
		ProgressEvery: s.ProgressEvery,
	}
	if s.Schedule != "" {
		return runner.Schedule(ctx, s.Schedule)
	}
	_, err = runner.RunOnce(ctx)
	return err
}

func installMetrics(m config.Metrics, log *slog.Logger) error {
	switch m.Backend {
	case "", "none":
		log.Debug("metrics: disabled")
		return nil
	case "prometheus":
		b, err := prompush.NewBackend(m.Job, m.PushgatewayURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		log.Info("metrics: pushgateway", "url", m.PushgatewayURL, "job", m.Job)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: m.StatsdAddr, Namespace: "refocus."})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		log.Info("metrics: dogstatsd", "addr", m.StatsdAddr)
	default:
		return fmt.Errorf("unknown backend %q", m.Backend)
	}
	return nil
}

// deps builds the HTTP client and geocoders shared by the feeds of a run.
func deps(s config.Settings, log *slog.Logger) resource.Deps {
	geo := func(base string) geocode.Options {
		return geocode.Options{
			BaseURL:   base,
			UserAgent: s.HTTP.UserAgent,
			Interval:  s.Geocode.Interval,
			RetryMax:  s.Geocode.RetryMax,
			RetryWait: s.Geocode.RetryWait,
			Logger:    log,
		}
	}
	return resource.Deps{
		HTTP: httpds.NewClient(httpds.Config{
			Timeout:    s.HTTP.Timeout,
			MaxRetries: s.HTTP.MaxRetries,
			UserAgent:  s.HTTP.UserAgent,
			Logger:     log,
		}),
		FCC:       geocode.NewFCC(geo(s.Geocode.FCCURL)),
		Nominatim: geocode.NewNominatim(geo(s.Geocode.NominatimURL)),
		Logger:    log,
	}
}
