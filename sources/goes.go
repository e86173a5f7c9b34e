package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"solar-impact-insights/dataset"
)

// DefaultGOESProtonURL is the SWPC 7-day GOES integral proton flux feed.
const DefaultGOESProtonURL = "https://services.swpc.noaa.gov/json/goes/primary/integral-protons-7-day.json"

// ProtonEnergyChannel is the integral channel used as SEP intensity.
const ProtonEnergyChannel = ">=10 MeV"

// GOESProtonSource reads SEP intensity as the daily maximum >=10 MeV proton flux (pfu).
type GOESProtonSource struct {
	fetcher *Fetcher
	url     string
}

// NewGOESProtonSource creates the source. An empty url uses DefaultGOESProtonURL.
func NewGOESProtonSource(fetcher *Fetcher, url string) *GOESProtonSource {
	if url == "" {
		url = DefaultGOESProtonURL
	}
	return &GOESProtonSource{fetcher: fetcher, url: url}
}

func (s *GOESProtonSource) Name() string           { return "goes-protons" }
func (s *GOESProtonSource) Column() dataset.Column { return dataset.SEPIntensity }

func (s *GOESProtonSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	body, err := s.fetcher.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return ParseGOESProtons(bytes.NewReader(body))
}

type goesReading struct {
	TimeTag string  `json:"time_tag"`
	Flux    float64 `json:"flux"`
	Energy  string  `json:"energy"`
}

// ParseGOESProtons parses the SWPC integral proton JSON.
func ParseGOESProtons(r io.Reader) (*dataset.Series, error) {
	var readings []goesReading
	if err := json.NewDecoder(r).Decode(&readings); err != nil {
		return nil, fmt.Errorf("parse GOES protons: %w", err)
	}

	var points []dataset.Point
	for _, rd := range readings {
		if strings.TrimSpace(rd.Energy) != ProtonEnergyChannel || rd.Flux < 0 {
			continue
		}
		d, err := dataset.ParseDate(rd.TimeTag)
		if err != nil {
			continue
		}
		points = append(points, dataset.Point{Date: d, Value: rd.Flux})
	}
	return dataset.Aggregate(dataset.SEPIntensity, points, dataset.Max)
}
