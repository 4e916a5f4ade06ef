package domain

import (
	"errors"
	"net/url"
	"slices"
	"strings"
)

// ErrInvalidStream is returned when a query is neither a known station nor an HTTP(S) URL.
var ErrInvalidStream = errors.New("not a valid URL or predefined stream name")

// Stream identifies an internet radio stream.
type Stream struct {
	URL  string
	Name string
}

// IsZero returns true if neither URL nor name is set.
func (s Stream) IsZero() bool {
	return s.URL == "" && s.Name == ""
}

// Station is a predefined stream that users can select by name.
type Station struct {
	Name string
	URL  string
}

// Stations is the set of predefined streams, keyed by display name.
type Stations map[string]string

// Sorted returns the stations ordered by name.
func (s Stations) Sorted() []Station {
	stations := make([]Station, 0, len(s))
	for name, u := range s {
		stations = append(stations, Station{Name: name, URL: u})
	}
	slices.SortFunc(stations, func(a, b Station) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return stations
}

// Lookup finds a station by name, ignoring case.
func (s Stations) Lookup(name string) (Station, bool) {
	for stationName, u := range s {
		if strings.EqualFold(stationName, name) {
			return Station{Name: stationName, URL: u}, true
		}
	}
	return Station{}, false
}

// ResolveStream converts user input into a Stream.
// Predefined station names take precedence over URLs. Surrounding angle brackets
// (Discord's link embed suppression) are stripped.
func ResolveStream(query string, stations Stations) (Stream, error) {
	input := strings.TrimSpace(query)
	input = strings.TrimSuffix(strings.TrimPrefix(input, "<"), ">")
	if input == "" {
		return Stream{}, ErrInvalidStream
	}

	if station, ok := stations.Lookup(input); ok {
		return Stream{URL: station.URL, Name: station.Name}, nil
	}

	if !IsStreamURL(input) {
		return Stream{}, ErrInvalidStream
	}

	return Stream{URL: input, Name: input}, nil
}

// IsStreamURL reports whether raw is an absolute http or https URL with a host.
func IsStreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
