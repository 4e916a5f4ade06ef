package presentation

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/usecases"
)

// maxChoiceLength is Discord's limit for choice names and values.
const maxChoiceLength = 100

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	autocomplete *usecases.AutocompleteService
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(
	autocomplete *usecases.AutocompleteService,
) *AutocompleteHandler {
	return &AutocompleteHandler{
		autocomplete: autocomplete,
	}
}

// HandlePlay handles autocomplete for the play command's stream option.
func (h *AutocompleteHandler) HandlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: h.playChoices(i.ApplicationCommandData()),
		},
	})
	if err != nil {
		slog.Debug("failed to respond to autocomplete", "error", err)
	}
}

// playChoices returns the station choices matching the focused stream option.
func (h *AutocompleteHandler) playChoices(
	data discordgo.ApplicationCommandInteractionData,
) []*discordgo.ApplicationCommandOptionChoice {
	var query string
	for _, opt := range data.Options {
		if opt.Name == "stream" && opt.Focused {
			query = opt.StringValue()
			break
		}
	}

	output := h.autocomplete.SuggestStations(usecases.SuggestStationsInput{
		Query: query,
	})

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(output.Stations))
	for _, station := range output.Stations {
		name := truncate(station.Name, maxChoiceLength)
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  name,
			Value: name,
		})
	}
	return choices
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
