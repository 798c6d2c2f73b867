package feed

import (
	"archive/zip"
	"bytes"
	"fmt"
	"iter"
	"path"
	"slices"

	"github.com/CThaw90/refocus-dataset/internal/records"
)

// ZipCSV yields the records of every CSV member of the archive whose base
// name is in names, in the order names lists them. Members that are absent
// from the archive are skipped.
func ZipCSV(data []byte, names []string, opt CSVOptions) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			yield(nil, fmt.Errorf("feed: open zip: %w", err))
			return
		}
		members := make(map[string]*zip.File, len(names))
		for _, f := range zr.File {
			base := path.Base(f.Name)
			if slices.Contains(names, base) {
				members[base] = f
			}
		}
		for _, name := range names {
			f, ok := members[name]
			if !ok {
				continue
			}
			if !yieldMember(f, opt, yield) {
				return
			}
		}
	}
}

func yieldMember(f *zip.File, opt CSVOptions, yield func(records.Record, error) bool) bool {
	rc, err := f.Open()
	if err != nil {
		yield(nil, fmt.Errorf("feed: open %s: %w", f.Name, err))
		return false
	}
	defer rc.Close()
	for rec, err := range CSV(rc, opt) {
		if !yield(rec, err) || err != nil {
			return false
		}
	}
	return true
}

// Concat chains sequences. It stops at the first error.
func Concat(seqs ...iter.Seq2[records.Record, error]) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		for _, seq := range seqs {
			for rec, err := range seq {
				if !yield(rec, err) || err != nil {
					return
				}
			}
		}
	}
}

// Slice yields recs in order. Useful for feeds assembled in memory.
func Slice(recs []records.Record) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}
