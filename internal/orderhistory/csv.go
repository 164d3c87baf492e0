package orderhistory

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoHeader is returned when a report has no header row.
var ErrNoHeader = errors.New("report has no header row")

// ReadCSV reads a report with a header row into raw rows.
func ReadCSV(r io.Reader) ([]RawRow, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	var rows []RawRow
	line := 1
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlank(rec) {
			continue
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				fields[col] = rec[i]
			}
		}
		rows = append(rows, NewRawRow(line, fields))
	}

	return rows, nil
}

// ReadCSVFile opens path and reads it with ReadCSV. An empty path yields no rows.
func ReadCSVFile(path string) ([]RawRow, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return rows, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
