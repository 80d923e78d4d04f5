package core

// parse.go turns the raw session export into RawRows.
//
// The export is a plain comma-joined sheet dump: no quoting or escaping is
// recognised. A value that itself contains a comma shifts every following
// column of that row.

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Delimiter separates fields in the export.
const Delimiter = ","

// MaxExportSize is the default limit for export files read by Parse (100MB).
var MaxExportSize int64 = 100 * 1024 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads an export from r and returns its data rows in input order.
// Reading more than MaxExportSize bytes fails with a "file too large" error.
func Parse(r io.Reader) ([]RawRow, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxExportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	if int64(len(data)) > MaxExportSize {
		return nil, fmt.Errorf("file too large: exceeds %dMB limit", MaxExportSize/(1024*1024))
	}
	return ParseBytes(data), nil
}

// ParseBytes splits export text into rows. The first line is the header and
// every following line is one row, so Ordinal is the line's position among
// data lines. Blank lines inside the export become all-empty rows; leading
// and trailing whitespace of the whole export is dropped. Rows shorter than
// the header are padded with "".
func ParseBytes(data []byte) []RawRow {
	data = bytes.TrimPrefix(data, utf8BOM)
	data = sanitizeUTF8(data)

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	headers := splitLine(lines[0])

	rows := make([]RawRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		values := splitLine(line)
		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(values) {
				fields[h] = values[i]
			} else {
				fields[h] = ""
			}
		}
		rows = append(rows, RawRow{Ordinal: len(rows) + 1, Fields: fields})
	}
	return rows
}

// MissingColumns returns the expected columns absent from the header of rows.
func MissingColumns(rows []RawRow, expected []string) []string {
	if len(rows) == 0 {
		return nil
	}
	var missing []string
	for _, col := range expected {
		if _, ok := rows[0].Fields[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

func splitLine(line string) []string {
	parts := strings.Split(strings.TrimSuffix(line, "\r"), Delimiter)
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
