package sources

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"solar-impact-insights/dataset"
)

// DefaultGFZURL is the GFZ Potsdam definitive Kp archive.
const DefaultGFZURL = "https://kp.gfz-potsdam.de/app/files/Kp_ap_Ap_SN_F107_since_1932.txt"

// GFZKpSource reads the daily mean Kp from the GFZ archive, either downloaded or from a
// local copy when Path is set.
type GFZKpSource struct {
	fetcher *Fetcher
	URL     string
	Path    string
	Start   time.Time
	End     time.Time
}

// NewGFZKpSource creates a downloading source bounded to [start, end]. Zero bounds are open.
func NewGFZKpSource(fetcher *Fetcher, url string, start, end time.Time) *GFZKpSource {
	if url == "" {
		url = DefaultGFZURL
	}
	return &GFZKpSource{fetcher: fetcher, URL: url, Start: start, End: end}
}

func (s *GFZKpSource) Name() string           { return "gfz-kp" }
func (s *GFZKpSource) Column() dataset.Column { return dataset.KpIndex }

func (s *GFZKpSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	var r io.Reader
	if s.Path != "" {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open GFZ file: %w", err)
		}
		defer f.Close()
		r = f
	} else {
		if s.fetcher == nil {
			return nil, fmt.Errorf("gfz-kp: no fetcher and no local path")
		}
		body, err := s.fetcher.Get(ctx, s.URL)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(body)
	}

	series, err := ParseGFZ(r)
	if err != nil {
		return nil, err
	}
	return series.Between(s.Start, s.End), nil
}

// gfzDay holds one parsed day from the GFZ Kp file.
type gfzDay struct {
	Date  time.Time
	Kp    [8]float64
	Valid int
}

// parseGFZLine parses one whitespace-delimited data line.
//
//	Col  0-2:  Year Month Day
//	Col  3-6:  day of year, MJD, Bartels rotation, day within rotation
//	Col  7-14: Kp1..Kp8 (3-hourly, 0.000-9.000)
//	Col 15-26: ap1..ap8, Ap, SN, F10.7obs, F10.7adj
//
// Missing Kp values are negative and are not counted in Valid.
func parseGFZLine(line string) (gfzDay, bool) {
	fields := strings.Fields(line)
	if len(fields) < 15 {
		return gfzDay{}, false
	}

	year, err := strconv.Atoi(fields[0])
	if err != nil || year < 1900 || year > 2100 {
		return gfzDay{}, false
	}
	month, _ := strconv.Atoi(fields[1])
	day, _ := strconv.Atoi(fields[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return gfzDay{}, false
	}

	d := gfzDay{Date: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
	for i := 0; i < 8; i++ {
		v, err := strconv.ParseFloat(fields[7+i], 64)
		if err != nil || v < 0 {
			d.Kp[i] = -1
			continue
		}
		d.Kp[i] = v
		d.Valid++
	}
	return d, true
}

// mean returns the mean of the valid 3-hourly values.
func (d gfzDay) mean() float64 {
	sum := 0.0
	for _, v := range d.Kp {
		if v >= 0 {
			sum += v
		}
	}
	return sum / float64(d.Valid)
}

// ParseGFZ reads the archive into a daily mean Kp series. Days with no valid readings are skipped.
func ParseGFZ(r io.Reader) (*dataset.Series, error) {
	var points []dataset.Point
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, ok := parseGFZLine(line)
		if !ok || d.Valid == 0 {
			continue
		}
		points = append(points, dataset.Point{Date: d.Date, Value: d.mean()})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read GFZ: %w", err)
	}
	return dataset.NewSeries(dataset.KpIndex, points)
}
