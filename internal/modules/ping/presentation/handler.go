package presentation

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/sgrradio/internal/bot"
	"github.com/sglre6355/sgrradio/internal/modules/ping/application"
)

// PingHandler handles the /ping command.
type PingHandler struct {
	interactor *application.PingInteractor
}

// NewPingHandler creates a new PingHandler.
func NewPingHandler(source application.LatencySource) *PingHandler {
	return &PingHandler{
		interactor: application.NewPingInteractor(source),
	}
}

// Handle processes the ping command and sends the response.
func (h *PingHandler) Handle(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	result := h.interactor.Execute()

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: result.Message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
