package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// spreadsheetReader streams the first worksheet of a workbook.
type spreadsheetReader struct {
	book  *excelize.File
	rows  *excelize.Rows
	names []string
	line  int
}

func openSpreadsheet(path string, fields []string) (*spreadsheetReader, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		_ = book.Close()
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := book.Rows(sheets[0])
	if err != nil {
		_ = book.Close()
		return nil, fmt.Errorf("%s: read sheet %q: %w", path, sheets[0], err)
	}
	return &spreadsheetReader{book: book, rows: rows, names: fields}, nil
}

func (r *spreadsheetReader) Next() (Record, error) {
	for r.rows.Next() {
		r.line++
		cells, err := r.rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", r.line, err)
		}

		rec := make(Record, len(r.names))
		for i, v := range cells {
			if i >= len(r.names) {
				break
			}
			if notANumber(v) {
				continue
			}
			rec[r.names[i]] = v
		}
		if len(rec) == 0 {
			continue
		}
		return rec, nil
	}
	if err := r.rows.Error(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return nil, io.EOF
}

func (r *spreadsheetReader) Line() int { return r.line }

func (r *spreadsheetReader) Close() error {
	err := r.rows.Close()
	if cerr := r.book.Close(); err == nil {
		err = cerr
	}
	return err
}

// notANumber reports whether a cell holds no usable value.
func notANumber(v string) bool {
	switch strings.TrimSpace(v) {
	case "", "nan", "NaN", "NAN", "#N/A":
		return true
	}
	return false
}
