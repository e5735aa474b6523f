// Package source reads raw election files into ordered streams of
// field-name to string records. It knows nothing about what the fields
// mean.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrFileNotFound is returned by Open when the file does not exist or
	// cannot be opened.
	ErrFileNotFound = errors.New("source: file not found")

	// ErrMissingColumns is returned by Open when a headered file lacks a
	// required column.
	ErrMissingColumns = errors.New("source: missing required columns")

	// ErrUnknownFormat is returned for an unsupported Format value.
	ErrUnknownFormat = errors.New("source: unknown format")
)

// Format is the physical layout of a source file.
type Format int

const (
	// FormatDelimited is comma-delimited text whose first row names the
	// fields.
	FormatDelimited Format = iota
	// FormatFixedField is comma-delimited text with no header; fields are
	// named positionally from a declared list.
	FormatFixedField
	// FormatSpreadsheet is the first worksheet of an .xlsx workbook, read
	// positionally with no header.
	FormatSpreadsheet
)

func (f Format) String() string {
	switch f {
	case FormatDelimited:
		return "delimited"
	case FormatFixedField:
		return "fixed-field"
	case FormatSpreadsheet:
		return "spreadsheet"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// FormatFor picks a format from the file extension. Text files are
// FormatDelimited when headered is true and FormatFixedField otherwise.
func FormatFor(path string, headered bool) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatSpreadsheet
	}
	if headered {
		return FormatDelimited
	}
	return FormatFixedField
}

// Record is one source row. A field the row does not carry is absent from
// the map.
type Record map[string]string

// Get returns the value of a field, or "" when it is absent.
func (r Record) Get(name string) string {
	return r[name]
}

// Reader is a lazy, forward-only stream of records in source order. Next
// returns io.EOF after the last record.
type Reader interface {
	Next() (Record, error)
	// Line is the 1-based physical row of the record last returned.
	Line() int
	Close() error
}

// Open opens path in the given format.
//
// For FormatDelimited, fields lists the columns the header must contain;
// records carry every header column. For the positional formats, fields
// is the ordered list of names assigned to columns; cells beyond it are
// discarded and rows shorter than it leave the trailing fields absent.
func Open(path string, format Format, fields []string) (Reader, error) {
	switch format {
	case FormatDelimited, FormatFixedField:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
		}
		r, err := newTextReader(f, format == FormatDelimited, fields)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return r, nil
	case FormatSpreadsheet:
		return openSpreadsheet(path, fields)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, format)
}

// ReadAll drains r. It is meant for tests and small files.
func ReadAll(r Reader) ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
