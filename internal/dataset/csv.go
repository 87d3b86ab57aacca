package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// typeSampleRows caps how many rows the kind inference inspects per column.
const typeSampleRows = 200

// LoadCSV reads a CSV stream into a Dataset. The first record is the header.
// Column kinds are inferred from a sample of the values; CSV sources carry no
// value-label or missing-code metadata, so descriptors start bare and the
// analysis config supplies global missing codes.
func LoadCSV(r io.Reader, name string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("csv has no columns")
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, rec)
	}

	cols := make([]*Column, len(headers))
	for i, h := range headers {
		cols[i] = buildColumn(strings.TrimSpace(h), i, rows)
	}
	return New(name, cols)
}

// buildColumn infers the kind of column idx from the raw rows and converts
// the cells into the typed representation.
func buildColumn(header string, idx int, rows [][]string) *Column {
	kind := inferKind(idx, rows)
	col := &Column{
		Desc:    Descriptor{Name: header, Kind: kind},
		Missing: make([]bool, len(rows)),
	}

	switch kind {
	case KindNumeric:
		col.Nums = make([]float64, len(rows))
		for i, row := range rows {
			val := cell(row, idx)
			if val == "" {
				col.Missing[i] = true
				continue
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				col.Missing[i] = true
				continue
			}
			col.Nums[i] = f
		}
	default:
		col.Strs = make([]string, len(rows))
		for i, row := range rows {
			val := cell(row, idx)
			if val == "" {
				col.Missing[i] = true
				continue
			}
			col.Strs[i] = val
		}
	}
	return col
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	v := strings.TrimSpace(row[idx])
	switch strings.ToLower(v) {
	case "null", "n/a", "na":
		return ""
	}
	return v
}

// inferKind samples non-empty values and requires 80%+ agreement for
// numeric or date, otherwise the column stays string.
func inferKind(idx int, rows [][]string) Kind {
	numCount, dateCount, total := 0, 0, 0
	for i, row := range rows {
		if i >= typeSampleRows {
			break
		}
		val := cell(row, idx)
		if val == "" {
			continue
		}
		total++
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			numCount++
		}
		if isDateString(val) {
			dateCount++
		}
	}
	if total == 0 {
		return KindString
	}
	threshold := int(float64(total) * 0.8)
	if threshold < 1 {
		threshold = 1
	}
	if numCount >= threshold {
		return KindNumeric
	}
	if dateCount >= threshold {
		return KindDate
	}
	return KindString
}

var csvDateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
}

func isDateString(s string) bool {
	for _, layout := range csvDateFormats {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
