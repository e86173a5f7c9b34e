package sources

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"solar-impact-insights/dataset"
)

// DefaultGISSURL is the GISTEMP global land-ocean monthly anomaly table.
const DefaultGISSURL = "https://data.giss.nasa.gov/gistemp/tabledata_v4/GLB.Ts+dSST.csv"

// GISSTemperatureSource reads monthly global temperature anomalies, one point on the
// first day of each month.
type GISSTemperatureSource struct {
	fetcher *Fetcher
	url     string
}

// NewGISSTemperatureSource creates the source. An empty url uses DefaultGISSURL.
func NewGISSTemperatureSource(fetcher *Fetcher, url string) *GISSTemperatureSource {
	if url == "" {
		url = DefaultGISSURL
	}
	return &GISSTemperatureSource{fetcher: fetcher, url: url}
}

func (s *GISSTemperatureSource) Name() string           { return "giss-temperature" }
func (s *GISSTemperatureSource) Column() dataset.Column { return dataset.Temperature }

func (s *GISSTemperatureSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return ParseGISS(bytes.NewReader(body))
}

// ParseGISS reads the table after the line starting with "Year". Cells of "***" are missing.
func ParseGISS(r io.Reader) (*dataset.Series, error) {
	scanner := bufio.NewScanner(r)
	var months []int
	var points []dataset.Point

	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), ",")
		if len(fields) == 0 {
			continue
		}
		if months == nil {
			if strings.EqualFold(strings.TrimSpace(fields[0]), "year") {
				months = monthColumns(fields)
			}
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}
		for m, i := range months {
			if i < 0 || i >= len(fields) {
				continue
			}
			cell := strings.TrimSpace(fields[i])
			if cell == "" || strings.HasPrefix(cell, "*") {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			points = append(points, dataset.Point{
				Date:  time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, time.UTC),
				Value: v,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read GISS: %w", err)
	}
	if months == nil {
		return nil, fmt.Errorf("GISS table has no Year header")
	}
	return dataset.NewSeries(dataset.Temperature, points)
}

// monthColumns maps month index 0..11 to its column in header, or -1.
func monthColumns(header []string) []int {
	out := make([]int, 12)
	for i := range out {
		out[i] = -1
	}
	for i, h := range header {
		t, err := time.Parse("Jan", strings.TrimSpace(h))
		if err != nil {
			continue
		}
		out[int(t.Month())-1] = i
	}
	return out
}
