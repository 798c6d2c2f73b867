package transform

import (
	"context"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/CThaw90/refocus-dataset/internal/aggregate"
	"github.com/CThaw90/refocus-dataset/internal/records"
)

// Value adapts a plain value conversion into a Derivation applied to
// rec[source].
func Value(fn func(any) any) Derivation {
	return func(_ context.Context, rec records.Record, source string, _ *aggregate.PartitionCache) (any, error) {
		return fn(rec[source]), nil
	}
}

// EnsureFloat yields rec[source] as float64, or 0 when it is not numeric.
var EnsureFloat = Value(func(v any) any { return records.FloatOrZero(v) })

// EnsureInt yields rec[source] as int64, or 0 when it is not an integer.
var EnsureInt = Value(func(v any) any {
	i, _ := records.Int(v)
	return i
})

// IntOrNull yields rec[source] as int64, or nil when it is not an integer.
var IntOrNull = Value(func(v any) any {
	if i, ok := records.Int(v); ok {
		return i
	}
	return nil
})

// BoolToInt maps nil, false, "", "no" and "false" (any case) to 0 and every
// other value to 1.
var BoolToInt = Value(func(v any) any {
	switch b := v.(type) {
	case nil:
		return int64(0)
	case bool:
		if b {
			return int64(1)
		}
		return int64(0)
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "", "no", "false":
			return int64(0)
		}
	}
	return int64(1)
})

// Zero always yields 0. Used for columns the feed cannot populate yet.
var Zero Derivation = func(context.Context, records.Record, string, *aggregate.PartitionCache) (any, error) {
	return int64(0), nil
}

// dateLayouts are tried in order by ISODate.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"Jan 02 2006 15:04:05",
}

// isoLayout matches the ISO-8601 shape written to DATETIME columns.
const isoLayout = "2006-01-02T15:04:05"

// ParseDate parses s with the known layouts. Times carrying a zone are
// converted to loc before formatting; naive times are taken as-is.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "Z07") && loc != nil {
			t = t.In(loc)
		}
		return t, true
	}
	return time.Time{}, false
}

// ISODate yields rec[source] reformatted as "2006-01-02T15:04:05", or nil
// when it cannot be parsed.
var ISODate = Value(func(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(isoLayout)
	case string:
		if parsed, ok := ParseDate(t, easternTime); ok {
			return parsed.Format(isoLayout)
		}
	}
	return nil
})

// easternTime is the zone feed timestamps are reported in.
var easternTime = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}()

// Normalized yields rec[source] as a trimmed NFC string with non-breaking
// spaces (and their mis-decoded "Â " form) replaced by plain spaces. Non-string
// values pass through unchanged.
var Normalized = Value(func(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return NormalizeText(s)
})

var nbsp = strings.NewReplacer("\u00c2\u00a0", " ", "\u00a0", " ")

// NormalizeText applies the Normalized cleanup to s.
func NormalizeText(s string) string {
	s = norm.NFC.String(nbsp.Replace(s))
	return strings.TrimSpace(s)
}

// FoldAccents strips combining marks so "Doña Ana" compares equal to
// "Dona Ana".
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// MapValue looks rec[source] up in table, yielding fallback when absent.
func MapValue(table map[string]string, fallback any) Derivation {
	return Value(func(v any) any {
		s, _ := v.(string)
		if out, ok := table[strings.TrimSpace(s)]; ok {
			return out
		}
		return fallback
	})
}

// Ratio yields rec[numerator]/rec[source] when the denominator is numeric and
// positive, else 0.
func Ratio(numerator string) Derivation {
	return func(_ context.Context, rec records.Record, source string, _ *aggregate.PartitionCache) (any, error) {
		den, ok := records.Float(rec[source])
		if !ok || den <= 0 {
			return 0.0, nil
		}
		return records.FloatOrZero(rec[numerator]) / den, nil
	}
}

// RollingMean binds aggregate.PartitionCache.RollingMean to a mapping: the
// partition is rec[partitionField] and the observed value is rec[source].
func RollingMean(partitionField, namespace string, window int) Derivation {
	return func(_ context.Context, rec records.Record, source string, cache *aggregate.PartitionCache) (any, error) {
		return cache.RollingMean(rec.String(partitionField), namespace, rec[source], window), nil
	}
}

// CumulativeSum binds aggregate.PartitionCache.CumulativeSum to a mapping.
func CumulativeSum(partitionField, namespace string) Derivation {
	return func(_ context.Context, rec records.Record, source string, cache *aggregate.PartitionCache) (any, error) {
		return cache.CumulativeSum(rec.String(partitionField), namespace, rec[source]), nil
	}
}

// PercentChange binds aggregate.PartitionCache.PercentChange to a mapping.
func PercentChange(partitionField, namespace string, n int) Derivation {
	return func(_ context.Context, rec records.Record, source string, cache *aggregate.PartitionCache) (any, error) {
		return cache.PercentChange(rec.String(partitionField), namespace, rec[source], n), nil
	}
}
