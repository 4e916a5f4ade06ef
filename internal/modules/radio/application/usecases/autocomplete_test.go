package usecases

import (
	"testing"

	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

func TestAutocompleteService_SuggestStations(t *testing.T) {
	service := NewAutocompleteService(domain.Stations{
		"Jazz FM":     "http://jazz",
		"Smooth Jazz": "http://smooth",
		"Lofi":        "http://lofi",
	})

	tests := []struct {
		name  string
		input SuggestStationsInput
		want  []string
	}{
		{
			name:  "empty query lists all sorted",
			input: SuggestStationsInput{},
			want:  []string{"Jazz FM", "Lofi", "Smooth Jazz"},
		},
		{
			name:  "prefix matches first",
			input: SuggestStationsInput{Query: "jazz"},
			want:  []string{"Jazz FM", "Smooth Jazz"},
		},
		{
			name:  "no match",
			input: SuggestStationsInput{Query: "rock"},
			want:  nil,
		},
		{
			name:  "limit",
			input: SuggestStationsInput{Limit: 1},
			want:  []string{"Jazz FM"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := service.SuggestStations(tt.input)

			if len(output.Stations) != len(tt.want) {
				t.Fatalf("expected %d stations, got %d", len(tt.want), len(output.Stations))
			}
			for i, name := range tt.want {
				if output.Stations[i].Name != name {
					t.Errorf("position %d: expected %q, got %q", i, name, output.Stations[i].Name)
				}
			}
		})
	}
}
