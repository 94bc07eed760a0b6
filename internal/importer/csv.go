package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV reads rows from CSV data whose first record is the header. Short
// records leave their trailing columns empty. Stray quotes are kept as text.
// A record that still cannot be parsed is returned as a row that fails
// validation, so the rest of the file is imported.
func ReadCSV(r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	return readRecords(reader)
}

type recordReader interface {
	Read() ([]string, error)
}

func readRecords(reader recordReader) ([]RawRow, error) {
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalizeColumn(h)
	}

	var rows []RawRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			rows = append(rows, RawRow{readErrorKey: fmt.Sprintf("line %d: %v", parseErr.Line, parseErr.Err)})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		rows = append(rows, toRow(columns, record))
	}
	return rows, nil
}

func toRow(columns []string, values []string) RawRow {
	row := make(RawRow, len(columns))
	for i, col := range columns {
		if col == "" || i >= len(values) {
			continue
		}
		row[col] = values[i]
	}
	return row
}

// normalizeColumn lowercases a header and strips a UTF-8 byte order mark,
// which spreadsheet exports often prepend to the first header.
func normalizeColumn(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ReplaceAll(h, "\x00", "")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}
