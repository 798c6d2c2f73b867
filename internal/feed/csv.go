// Package feed turns downloaded payloads into lazy record sequences.
//
// Every reader returns an iter.Seq2[records.Record, error]. The sequence is
// single pass and stops at the first error it yields; a consumer that breaks
// out early releases the underlying reader.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/CThaw90/refocus-dataset/internal/records"
)

const utf8BOM = "\uFEFF"

// CSVOptions controls how delimited text is parsed.
type CSVOptions struct {
	// Fields names the columns positionally. When empty the first row is the
	// header.
	Fields []string

	// SeekHeader discards rows until one equals Fields cell for cell; that
	// row is dropped too. Published spreadsheets often carry banner rows
	// above the real header.
	SeekHeader bool

	// Comma defaults to ','.
	Comma rune

	LazyQuotes bool

	// TrimSpace trims every cell.
	TrimSpace bool

	// Decoder converts a legacy charset to UTF-8 before parsing.
	Decoder *encoding.Decoder
}

// CSV streams r as records keyed by header (or Fields) name. Fields missing
// from a short row are nil; extra cells are ignored. Cells stay strings, so
// an empty cell is "".
func CSV(r io.Reader, opt CSVOptions) iter.Seq2[records.Record, error] {
	return func(yield func(records.Record, error) bool) {
		if opt.Decoder != nil {
			r = opt.Decoder.Reader(r)
		}
		cr := csv.NewReader(r)
		if opt.Comma != 0 {
			cr.Comma = opt.Comma
		}
		cr.LazyQuotes = opt.LazyQuotes
		cr.FieldsPerRecord = -1
		cr.ReuseRecord = true

		line := 0
		read := func() ([]string, error) {
			line++
			return cr.Read()
		}

		header := opt.Fields
		if len(header) == 0 {
			hdr, err := read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("feed: read csv header: %w", err))
				return
			}
			header = StripHeaderBOM(slices.Clone(hdr))
			for i := range header {
				header[i] = strings.TrimSpace(header[i])
			}
		}

		seeking := opt.SeekHeader && len(opt.Fields) > 0
		for {
			row, err := read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("feed: csv line %d: %w", line, err))
				return
			}
			if seeking {
				seeking = !isHeaderRow(row, opt.Fields)
				continue
			}
			if isBlank(row) {
				continue
			}
			if !yield(toRecord(header, row, opt.TrimSpace), nil) {
				return
			}
		}
	}
}

// StripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func StripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

func toRecord(header, row []string, trim bool) records.Record {
	rec := make(records.Record, len(header))
	for i, name := range header {
		if i >= len(row) {
			rec[name] = nil
			continue
		}
		v := row[i]
		if trim {
			v = strings.TrimSpace(v)
		}
		rec[name] = v
	}
	return rec
}

func isHeaderRow(row, fields []string) bool {
	if len(row) < len(fields) {
		return false
	}
	for i, f := range fields {
		if strings.TrimSpace(strings.TrimPrefix(row[i], utf8BOM)) != f {
			return false
		}
	}
	return true
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
