package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"solar-impact-insights/dataset"
)

const clusterHeader = "cluster"

// WriteCSV writes a header of date, sep_intensity, the table's companions and, when any record
// is labeled, cluster. Absent values are empty cells. Floats keep full precision.
func WriteCSV(w io.Writer, t *dataset.Table) error {
	cw := csv.NewWriter(w)
	cols := t.ValueColumns()
	withCluster := t.HasClusters()

	header := []string{"date"}
	for _, c := range cols {
		header = append(header, c.String())
	}
	if withCluster {
		header = append(header, clusterHeader)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, r := range t.Records {
		row = row[:0]
		row = append(row, r.Date.Format(dataset.DateLayout))
		for _, c := range cols {
			if v, ok := r.Value(c); ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if withCluster {
			if r.Cluster != nil {
				row = append(row, strconv.Itoa(*r.Cluster))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV. Unknown headers are rejected with
// dataset.ErrUnknownColumn.
func ReadCSV(r io.Reader) (*dataset.Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	if len(header) < 2 || strings.TrimSpace(header[0]) != "date" {
		return nil, fmt.Errorf("CSV header must start with date: %v", header)
	}

	cols := make([]dataset.Column, 0, len(header))
	clusterIdx := -1
	var companions []dataset.Column
	for i, h := range header[1:] {
		if strings.TrimSpace(h) == clusterHeader {
			clusterIdx = i + 1
			cols = append(cols, "")
			continue
		}
		c, err := dataset.ParseColumn(h)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
		if !c.IsPrimary() {
			companions = append(companions, c)
		}
	}

	var records []dataset.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}

		date, err := dataset.ParseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("CSV line %d: %w", line, err)
		}
		rec := dataset.Record{Date: date}
		hasPrimary := false
		for i, cell := range row[1:] {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			if i+1 == clusterIdx {
				k, err := strconv.Atoi(cell)
				if err != nil {
					return nil, fmt.Errorf("CSV line %d: invalid cluster %q", line, cell)
				}
				rec.Cluster = dataset.Int(k)
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("CSV line %d: invalid %s %q", line, cols[i], cell)
			}
			if !dataset.Finite(v) {
				continue
			}
			rec.SetValue(cols[i], v)
			if cols[i].IsPrimary() {
				hasPrimary = true
			}
		}
		if !hasPrimary {
			return nil, fmt.Errorf("CSV line %d: missing %s", line, dataset.SEPIntensity)
		}
		records = append(records, rec)
	}
	return dataset.NewTable(companions, records)
}
