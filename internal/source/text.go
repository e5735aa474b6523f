package source

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// textReader reads comma-delimited text, with or without a header row.
type textReader struct {
	f     *os.File
	csv   *csv.Reader
	names []string
	line  int
}

func newTextReader(f *os.File, headered bool, fields []string) (*textReader, error) {
	cr := csv.NewReader(transform.NewReader(f, &legacyDecoder{}))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	r := &textReader{f: f, csv: cr, names: fields}
	if !headered {
		return r, nil
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	r.names = make([]string, len(header))
	present := make(map[string]bool, len(header))
	for i, h := range header {
		r.names[i] = strings.TrimSpace(h)
		present[r.names[i]] = true
	}
	var missing []string
	for _, want := range fields {
		if !present[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return r, nil
}

func (r *textReader) Next() (Record, error) {
	for {
		row, err := r.csv.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("read %s: %w", r.f.Name(), err)
			}
			return nil, err
		}
		r.line, _ = r.csv.FieldPos(0)
		if blank(row) {
			continue
		}

		rec := make(Record, len(r.names))
		for i, v := range row {
			if i >= len(r.names) {
				break
			}
			rec[r.names[i]] = v
		}
		return rec, nil
	}
}

func (r *textReader) Line() int { return r.line }

func (r *textReader) Close() error { return r.f.Close() }

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// legacyDecoder drops a leading UTF-8 byte order mark, passes valid UTF-8
// through, and decodes any byte that is not part of a valid UTF-8 sequence
// as Windows-1252, the encoding of the older state exports.
type legacyDecoder struct {
	started bool
}

func (d *legacyDecoder) Reset() { d.started = false }

func (d *legacyDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !d.started {
		if !atEOF && len(src) < len(utf8BOM) && bytes.HasPrefix(utf8BOM, src) {
			return 0, 0, transform.ErrShortSrc
		}
		if bytes.HasPrefix(src, utf8BOM) {
			nSrc = len(utf8BOM)
		}
		d.started = true
	}
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size <= 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			r, size = charmap.Windows1252.DecodeByte(src[nSrc]), 1
		}
		if nDst+utf8.RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc += size
	}
	return nDst, nSrc, nil
}
