package transform

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/CThaw90/refocus-dataset/internal/records"
)

// SeenSet remembers composite keys by their 128-bit xxh3 hash. A record's
// key is the configured fields joined with \x1f, nil encoded as \x00.
type SeenSet struct {
	keys []string
	seen map[xxh3.Uint128]struct{}
}

// NewSeenSet returns an empty set keyed by the given record fields.
func NewSeenSet(keys ...string) *SeenSet {
	return &SeenSet{keys: keys, seen: make(map[xxh3.Uint128]struct{})}
}

// Add marks rec's key as seen.
func (s *SeenSet) Add(rec records.Record) {
	s.seen[s.hash(keyValues(rec, s.keys))] = struct{}{}
}

// AddValues marks an already-extracted key (e.g. a selected row) as seen.
// values must be in key order.
func (s *SeenSet) AddValues(values ...any) {
	s.seen[s.hash(values)] = struct{}{}
}

// Contains reports whether rec's key has been seen.
func (s *SeenSet) Contains(rec records.Record) bool {
	_, ok := s.seen[s.hash(keyValues(rec, s.keys))]
	return ok
}

// Len returns the number of distinct keys.
func (s *SeenSet) Len() int { return len(s.seen) }

// SkipSeen returns a skip predicate that drops records already in the set
// and adds every new one, so later duplicates in the same feed are dropped
// too.
func (s *SeenSet) SkipSeen() func(records.Record) bool {
	return func(rec records.Record) bool {
		h := s.hash(keyValues(rec, s.keys))
		if _, ok := s.seen[h]; ok {
			return true
		}
		s.seen[h] = struct{}{}
		return false
	}
}

func keyValues(rec records.Record, keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = rec[k]
	}
	return out
}

func (s *SeenSet) hash(values []any) xxh3.Uint128 {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		switch t := v.(type) {
		case nil:
			b.WriteByte('\x00')
		case string:
			b.WriteString(strings.TrimSpace(t))
		case []byte:
			b.WriteString(strings.TrimSpace(string(t)))
		default:
			b.WriteString(fmt.Sprint(t))
		}
	}
	return xxh3.HashString128(b.String())
}
