// Package config loads runtime settings from the environment.
//
// Every setting has an environment variable; a .env file, when present, seeds
// variables that are not already set. Command-line flags override the result
// in cmd/refocus.
//
//	DB_DRIVER=mysql DB_HOST=localhost DB_USER=refocus DB_PASS=... DB_NAME=refocus DB_PORT=3306
//	REFOCUS_FEEDS=cdc_state_trends,google_mobility
//	REFOCUS_SCHEDULE="0 6 * * *"
//	REFOCUS_CREATE_TABLES=yes
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

// Settings is the full runtime configuration.
type Settings struct {
	DB storage.Config

	// Feeds selects feeds by name, in run order. Empty means every feed.
	Feeds []string

	// Schedule is a cron expression. Empty runs once and exits.
	Schedule string

	Verbose bool

	// CreateTables creates missing feed tables after connecting.
	CreateTables bool

	// ProgressEvery logs save progress every N records; 0 disables it.
	ProgressEvery int

	Metrics Metrics
	HTTP    HTTP
	Geocode Geocode
}

// Metrics selects and configures the metrics backend.
type Metrics struct {
	// Backend is "none", "prometheus" or "datadog".
	Backend        string
	PushgatewayURL string
	Job            string
	StatsdAddr     string
}

// HTTP configures feed downloads.
type HTTP struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
}

// Geocode configures the reverse-geocoding resolvers.
type Geocode struct {
	Interval     time.Duration
	RetryMax     int
	RetryWait    time.Duration
	NominatimURL string
	FCCURL       string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		DB: storage.Config{Driver: "mysql"},
		Metrics: Metrics{
			Backend:    "none",
			Job:        "refocus",
			StatsdAddr: "127.0.0.1:8125",
		},
		HTTP: HTTP{
			Timeout:    5 * time.Minute,
			MaxRetries: 3,
			UserAgent:  "refocus-dataset/1.0",
		},
		Geocode: Geocode{
			Interval:  time.Second,
			RetryMax:  3,
			RetryWait: time.Second,
		},
	}
}

// Load reads path as a .env file, then builds Settings from the process
// environment. A missing file is ignored unless required is set.
func Load(path string, required bool) (Settings, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			if required || !errors.Is(err, fs.ErrNotExist) {
				return Settings{}, fmt.Errorf("config: load %s: %w", path, err)
			}
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds Settings from lookup, starting from Defaults. Malformed
// numbers and durations are reported together.
func FromEnv(lookup func(string) (string, bool)) (Settings, error) {
	s := Defaults()
	e := Env{lookup: lookup}

	s.DB.Driver = e.String("DB_DRIVER", s.DB.Driver)
	s.DB.Host = e.String("DB_HOST", "")
	s.DB.User = e.String("DB_USER", "")
	s.DB.Password = e.String("DB_PASS", "")
	s.DB.Database = e.String("DB_NAME", "")
	s.DB.Port = e.Int("DB_PORT", 0)
	s.DB.Params = e.Query("DB_PARAMS")

	s.Feeds = e.List("REFOCUS_FEEDS")
	s.Schedule = e.String("REFOCUS_SCHEDULE", "")
	s.Verbose = e.Bool("REFOCUS_VERBOSE", false)
	s.CreateTables = e.Bool("REFOCUS_CREATE_TABLES", false)
	s.ProgressEvery = e.Int("PROGRESS_EVERY", s.ProgressEvery)
	if s.ProgressEvery == 0 && e.Set("DEBUG_PROGRESS") {
		s.ProgressEvery = 10_000
	}

	s.Metrics.Backend = strings.ToLower(e.String("METRICS_BACKEND", s.Metrics.Backend))
	s.Metrics.PushgatewayURL = e.String("PUSHGATEWAY_URL", "")
	s.Metrics.Job = e.String("METRICS_JOB", s.Metrics.Job)
	s.Metrics.StatsdAddr = e.String("STATSD_ADDR", s.Metrics.StatsdAddr)

	s.HTTP.Timeout = e.Duration("HTTP_TIMEOUT", s.HTTP.Timeout)
	s.HTTP.MaxRetries = e.Int("HTTP_MAX_RETRIES", s.HTTP.MaxRetries)
	s.HTTP.UserAgent = e.String("USER_AGENT", s.HTTP.UserAgent)

	s.Geocode.Interval = e.Duration("GEOCODE_INTERVAL", s.Geocode.Interval)
	s.Geocode.RetryMax = e.Int("GEOCODE_RETRY_MAX", s.Geocode.RetryMax)
	s.Geocode.RetryWait = e.Duration("GEOCODE_RETRY_WAIT", s.Geocode.RetryWait)
	s.Geocode.NominatimURL = e.String("NOMINATIM_URL", "")
	s.Geocode.FCCURL = e.String("FCC_URL", "")

	if err := e.Err(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Env reads typed values from an environment lookup. Parse failures are
// collected and reported by Err; the default is used in their place.
type Env struct {
	lookup func(string) (string, bool)
	errs   []error
}

// NewEnv wraps lookup, typically os.LookupEnv.
func NewEnv(lookup func(string) (string, bool)) *Env {
	return &Env{lookup: lookup}
}

func (e *Env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// Set reports whether key is present, even if empty.
func (e *Env) Set(key string) bool {
	_, ok := e.lookup(key)
	return ok
}

// String returns the trimmed value for key or def when unset or blank.
func (e *Env) String(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

// Bool accepts the strconv.ParseBool forms plus "yes"/"no".
func (e *Env) Bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (e *Env) Int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %q is not an integer", key, v))
		return def
	}
	return n
}

// Duration accepts Go duration syntax ("1500ms", "2m") or bare seconds.
func (e *Env) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %q is not a duration", key, v))
		return def
	}
	return d
}

// List splits a comma separated value, dropping blanks.
func (e *Env) List(key string) []string {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	return SplitList(v)
}

// Query parses "k=v&k2=v2" into a map, keeping the first value per key.
func (e *Env) Query(key string) map[string]string {
	v, ok := e.raw(key)
	if !ok {
		return nil
	}
	q, err := url.ParseQuery(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
		return nil
	}
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// Err joins every parse failure seen so far.
func (e *Env) Err() error { return errors.Join(e.errs...) }

// SplitList splits s on commas, trimming and dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
