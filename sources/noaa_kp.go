package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"solar-impact-insights/dataset"
)

// DefaultNOAAKpURL is the SWPC planetary K index product.
const DefaultNOAAKpURL = "https://services.swpc.noaa.gov/products/noaa-planetary-k-index.json"

// NOAAKpSource reads the daily mean of the 3-hourly planetary Kp.
type NOAAKpSource struct {
	fetcher *Fetcher
	url     string
}

// NewNOAAKpSource creates the source. An empty url uses DefaultNOAAKpURL.
func NewNOAAKpSource(fetcher *Fetcher, url string) *NOAAKpSource {
	if url == "" {
		url = DefaultNOAAKpURL
	}
	return &NOAAKpSource{fetcher: fetcher, url: url}
}

func (s *NOAAKpSource) Name() string           { return "noaa-kp" }
func (s *NOAAKpSource) Column() dataset.Column { return dataset.KpIndex }

func (s *NOAAKpSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return ParseNOAAKp(bytes.NewReader(body))
}

// ParseNOAAKp accepts both layouts SWPC has published: an array of rows whose first row
// is the header, and an array of objects.
func ParseNOAAKp(r io.Reader) (*dataset.Series, error) {
	var rows []json.RawMessage
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("parse NOAA Kp: %w", err)
	}
	if len(rows) == 0 {
		return dataset.EmptySeries(dataset.KpIndex), nil
	}

	var readings []dataset.Point
	var err error
	if first := bytes.TrimSpace(rows[0]); len(first) > 0 && first[0] == '{' {
		readings, err = parseKpObjects(rows)
	} else {
		readings, err = parseKpTable(rows)
	}
	if err != nil {
		return nil, err
	}
	return dataset.Aggregate(dataset.KpIndex, readings, dataset.Mean)
}

func parseKpTable(rows []json.RawMessage) ([]dataset.Point, error) {
	var header []string
	if err := json.Unmarshal(rows[0], &header); err != nil {
		return nil, fmt.Errorf("parse NOAA Kp header: %w", err)
	}
	timeIdx, kpIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "time_tag":
			timeIdx = i
		case "kp":
			kpIdx = i
		}
	}
	if timeIdx < 0 || kpIdx < 0 {
		return nil, fmt.Errorf("parse NOAA Kp: header %v lacks time_tag or kp", header)
	}

	var out []dataset.Point
	for _, raw := range rows[1:] {
		var row []interface{}
		if err := json.Unmarshal(raw, &row); err != nil || len(row) <= max(timeIdx, kpIdx) {
			continue
		}
		ts, _ := row[timeIdx].(string)
		d, err := dataset.ParseDate(ts)
		if err != nil {
			continue
		}
		if kp, ok := toFloat(row[kpIdx]); ok {
			out = append(out, dataset.Point{Date: d, Value: kp})
		}
	}
	return out, nil
}

func parseKpObjects(rows []json.RawMessage) ([]dataset.Point, error) {
	var out []dataset.Point
	for _, raw := range rows {
		var obj map[string]interface{}
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		var ts string
		var kp interface{}
		for k, v := range obj {
			switch strings.ToLower(k) {
			case "time_tag":
				ts, _ = v.(string)
			case "kp", "kp_index":
				kp = v
			}
		}
		d, err := dataset.ParseDate(ts)
		if err != nil {
			continue
		}
		if v, ok := toFloat(kp); ok {
			out = append(out, dataset.Point{Date: d, Value: v})
		}
	}
	return out, nil
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
