package csvsnapshot

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	insights "greengauge/internal/insights/domain"
)

// Parse reads a CSV with a header line into rows whose cells follow the
// header order. Blank lines are skipped and short lines leave the missing
// columns empty.
func Parse(r io.Reader) ([]insights.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []insights.Row{}, nil
	}
	if err != nil {
		return nil, err
	}
	// A repeated header name keeps its first position and the last value.
	columns := make([]string, 0, len(header))
	position := make(map[string]int, len(header))
	source := make([]int, len(header))
	for i := range header {
		name := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		source[i] = -1
		if name == "" {
			continue
		}
		at, ok := position[name]
		if !ok {
			at = len(columns)
			position[name] = at
			columns = append(columns, name)
		}
		source[i] = at
	}

	rows := make([]insights.Row, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(record) {
			continue
		}
		row := make(insights.Row, len(columns))
		for i, name := range columns {
			row[i] = insights.Cell{Name: name}
		}
		for i, at := range source {
			if at >= 0 && i < len(record) {
				row[at].Value = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
