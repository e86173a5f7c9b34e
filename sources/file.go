package sources

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"solar-impact-insights/dataset"
)

// FileSource reads a two-column table (date and one value column) from a local CSV or
// JSON file. The format follows the file extension; anything but .json is CSV.
type FileSource struct {
	Path   string
	column dataset.Column
}

// NewFileSource creates a file source for col.
func NewFileSource(path string, col dataset.Column) (*FileSource, error) {
	c, err := dataset.ParseColumn(string(col))
	if err != nil {
		return nil, err
	}
	return &FileSource{Path: path, column: c}, nil
}

func (s *FileSource) Name() string           { return "file-" + filepath.Base(s.Path) }
func (s *FileSource) Column() dataset.Column { return s.column }

func (s *FileSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		return ParseSeriesJSON(f, s.column)
	}
	return ParseSeriesCSV(f, s.column)
}

// ParseSeriesCSV reads a "date,<column>" CSV. A value header naming a different schema
// column, or no schema column at all, is rejected with dataset.ErrUnknownColumn. Empty
// cells are skipped.
func ParseSeriesCSV(r io.Reader, col dataset.Column) (*dataset.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	if len(header) != 2 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("CSV header must be date,<column>: got %v", header)
	}
	if err := checkValueColumn(header[1], col); err != nil {
		return nil, err
	}

	var points []dataset.Point
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		if strings.TrimSpace(row[1]) == "" {
			continue
		}
		d, err := dataset.ParseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: invalid value %q", line, row[1])
		}
		points = append(points, dataset.Point{Date: d, Value: v})
	}
	return dataset.NewSeries(col, points)
}

// ParseSeriesJSON reads an array of objects holding "date" and either "value" or the
// column name. Null values are skipped.
func ParseSeriesJSON(r io.Reader, col dataset.Column) (*dataset.Series, error) {
	var rows []map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse JSON series: %w", err)
	}

	points := make([]dataset.Point, 0, len(rows))
	for i, row := range rows {
		var date string
		var value *float64
		for k, raw := range row {
			switch {
			case k == "date":
				if err := json.Unmarshal(raw, &date); err != nil {
					return nil, fmt.Errorf("row %d: date: %w", i, err)
				}
			case k == "value":
				if err := json.Unmarshal(raw, &value); err != nil {
					return nil, fmt.Errorf("row %d: value: %w", i, err)
				}
			default:
				if err := checkValueColumn(k, col); err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				if err := json.Unmarshal(raw, &value); err != nil {
					return nil, fmt.Errorf("row %d: %s: %w", i, k, err)
				}
			}
		}
		if value == nil {
			continue
		}
		d, err := dataset.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		points = append(points, dataset.Point{Date: d, Value: *value})
	}
	return dataset.NewSeries(col, points)
}

func checkValueColumn(name string, want dataset.Column) error {
	if strings.EqualFold(strings.TrimSpace(name), "value") {
		return nil
	}
	c, err := dataset.ParseColumn(name)
	if err != nil {
		return err
	}
	if c != want {
		return fmt.Errorf("%w: file holds %s, expected %s", dataset.ErrUnknownColumn, c, want)
	}
	return nil
}
