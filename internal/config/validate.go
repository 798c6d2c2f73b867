package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/CThaw90/refocus-dataset/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path names the environment
// variable (or flag) at fault.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	return slices.ContainsFunc(issues, func(i Issue) bool { return i.Severity == SeverityError })
}

// Validate checks s without touching the network. known lists the feed names
// the binary can run.
func (s Settings) Validate(known []string) []Issue {
	var issues []Issue
	issues = append(issues, validateDB(s.DB)...)

	for _, f := range s.Feeds {
		if !slices.Contains(known, f) {
			issues = append(issues, Issue{SeverityError, "REFOCUS_FEEDS", fmt.Sprintf("unknown feed %q (known: %s)", f, strings.Join(known, ", "))})
		}
	}
	if s.Schedule != "" {
		if _, err := cron.ParseStandard(s.Schedule); err != nil {
			issues = append(issues, Issue{SeverityError, "REFOCUS_SCHEDULE", err.Error()})
		}
	}
	if s.ProgressEvery < 0 {
		issues = append(issues, Issue{SeverityError, "PROGRESS_EVERY", "must be >= 0"})
	}

	switch s.Metrics.Backend {
	case "", "none":
	case "prometheus":
		if s.Metrics.PushgatewayURL == "" {
			issues = append(issues, Issue{SeverityError, "PUSHGATEWAY_URL", "required for the prometheus backend"})
		}
	case "datadog":
		if s.Metrics.StatsdAddr == "" {
			issues = append(issues, Issue{SeverityError, "STATSD_ADDR", "required for the datadog backend"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "METRICS_BACKEND", fmt.Sprintf("unknown backend %q (none, prometheus, datadog)", s.Metrics.Backend)})
	}

	if s.HTTP.MaxRetries < 0 {
		issues = append(issues, Issue{SeverityError, "HTTP_MAX_RETRIES", "must be >= 0"})
	}
	if s.HTTP.UserAgent == "" {
		issues = append(issues, Issue{SeverityWarning, "USER_AGENT", "empty; some feeds reject anonymous clients"})
	}
	if s.Geocode.NominatimURL == "" && s.Geocode.Interval > 0 && s.Geocode.Interval.Seconds() < 1 {
		issues = append(issues, Issue{SeverityWarning, "GEOCODE_INTERVAL", "public Nominatim allows at most one request per second"})
	}
	return issues
}

func validateDB(db storage.Config) []Issue {
	d, err := storage.LookupDialect(db.DriverOrDefault())
	if err != nil {
		return []Issue{{SeverityError, "DB_DRIVER", err.Error()}}
	}
	var issues []Issue
	for _, key := range db.Missing(d.Embedded) {
		issues = append(issues, Issue{SeverityError, key, "required"})
	}
	return issues
}
