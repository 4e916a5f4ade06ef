package usecases

import (
	"strings"

	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// DefaultSuggestionLimit is Discord's maximum number of autocomplete choices.
const DefaultSuggestionLimit = 25

// SuggestStationsInput contains the input for the SuggestStations use case.
type SuggestStationsInput struct {
	Query string
	Limit int // Max stations to return (default 25)
}

// SuggestStationsOutput contains the result of the SuggestStations use case.
type SuggestStationsOutput struct {
	Stations []Station
}

// AutocompleteService handles autocomplete-related operations.
type AutocompleteService struct {
	stations domain.Stations
}

// NewAutocompleteService creates a new AutocompleteService.
func NewAutocompleteService(stations domain.Stations) *AutocompleteService {
	return &AutocompleteService{
		stations: stations,
	}
}

// SuggestStations returns the stations whose name contains the query, ignoring case.
// Stations whose name starts with the query are listed first.
func (s *AutocompleteService) SuggestStations(input SuggestStationsInput) *SuggestStationsOutput {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	query := strings.ToLower(strings.TrimSpace(input.Query))

	var prefixed, contained []Station
	for _, station := range s.stations.Sorted() {
		name := strings.ToLower(station.Name)
		switch {
		case strings.HasPrefix(name, query):
			prefixed = append(prefixed, station)
		case strings.Contains(name, query):
			contained = append(contained, station)
		}
	}

	matches := append(prefixed, contained...)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return &SuggestStationsOutput{
		Stations: matches,
	}
}
