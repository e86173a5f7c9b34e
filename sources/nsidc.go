package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"solar-impact-insights/dataset"
)

// DefaultNSIDCURL is the NSIDC Sea Ice Index daily northern hemisphere extent.
const DefaultNSIDCURL = "https://noaadata.apps.nsidc.org/NOAA/G02135/north/daily/data/N_seaice_extent_daily_v3.0.csv"

// NSIDCIceSource reads daily sea ice extent in the units published by NSIDC (10^6 km^2).
type NSIDCIceSource struct {
	fetcher *Fetcher
	url     string
}

// NewNSIDCIceSource creates the source. An empty url uses DefaultNSIDCURL.
func NewNSIDCIceSource(fetcher *Fetcher, url string) *NSIDCIceSource {
	if url == "" {
		url = DefaultNSIDCURL
	}
	return &NSIDCIceSource{fetcher: fetcher, url: url}
}

func (s *NSIDCIceSource) Name() string           { return "nsidc-ice" }
func (s *NSIDCIceSource) Column() dataset.Column { return dataset.IceExtent }

func (s *NSIDCIceSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return ParseNSIDC(bytes.NewReader(body))
}

// ParseNSIDC parses the Year, Month, Day, Extent CSV. Rows that do not parse,
// such as the units row under the header, are skipped.
func ParseNSIDC(r io.Reader) (*dataset.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read NSIDC header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"year", "month", "day", "extent"} {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("NSIDC header lacks %q", k)
		}
	}

	var points []dataset.Point
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read NSIDC row: %w", err)
		}
		field := func(k string) string {
			if i := idx[k]; i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		y, errY := strconv.Atoi(field("year"))
		m, errM := strconv.Atoi(field("month"))
		d, errD := strconv.Atoi(field("day"))
		v, errV := strconv.ParseFloat(field("extent"), 64)
		if errY != nil || errM != nil || errD != nil || errV != nil || v < 0 {
			continue
		}
		points = append(points, dataset.Point{
			Date:  time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC),
			Value: v,
		})
	}
	return dataset.Aggregate(dataset.IceExtent, points, dataset.Mean)
}
