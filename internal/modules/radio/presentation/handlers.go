package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/bot"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/usecases"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
)

// Playback is the part of the playback service the command handlers use.
type Playback interface {
	RequestPlay(ctx context.Context, input usecases.PlayInput) (*usecases.PlayOutput, error)
	Join(ctx context.Context, input usecases.JoinInput) (*usecases.JoinOutput, error)
	RequestStop(ctx context.Context, guildID snowflake.ID) error
	Leave(ctx context.Context, guildID snowflake.ID) error
	ShowStatus(ctx context.Context, guildID, textChannelID snowflake.ID) error
	ListStations() []usecases.Station
}

// Handlers holds all the command handlers.
type Handlers struct {
	playback Playback
}

// NewHandlers creates new Handlers.
func NewHandlers(playback Playback) *Handlers {
	return &Handlers{
		playback: playback,
	}
}

// HandlePlay handles the /play command.
// Connecting can take a while, so the response is deferred and edited afterwards.
func (h *Handlers) HandlePlay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	if i.Member == nil {
		return respondError(r, "This command can only be used in a server.")
	}

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return respondError(r, "Invalid user")
	}

	textChannelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return respondError(r, "Invalid channel")
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "stream" {
			query = opt.StringValue()
		}
	}

	if err := r.Defer(false); err != nil {
		return err
	}

	output, err := h.playback.RequestPlay(context.Background(), usecases.PlayInput{
		GuildID:       guildID,
		UserID:        userID,
		TextChannelID: textChannelID,
		Query:         query,
	})
	if err != nil {
		slog.Debug("play request failed", "guild", guildID, "query", query, "error", err)
		return editError(r, errorMessage(err))
	}

	return editSuccess(r, fmt.Sprintf("Now playing: **%s**", output.StreamName))
}

// HandleJoin handles the /join command.
func (h *Handlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	if i.Member == nil {
		return respondError(r, "This command can only be used in a server.")
	}

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return respondError(r, "Invalid user")
	}

	if err := r.Defer(false); err != nil {
		return err
	}

	output, err := h.playback.Join(context.Background(), usecases.JoinInput{
		GuildID: guildID,
		UserID:  userID,
	})
	if err != nil {
		slog.Debug("join request failed", "guild", guildID, "error", err)
		return editError(r, errorMessage(err))
	}

	return editSuccess(r, fmt.Sprintf("Joined <#%s>.", output.VoiceChannelID))
}

// HandleStop handles the /stop command.
func (h *Handlers) HandleStop(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.playback.RequestStop(context.Background(), guildID); err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, "Stopped the radio.")
}

// HandleLeave handles the /leave command.
func (h *Handlers) HandleLeave(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	if err := h.playback.Leave(context.Background(), guildID); err != nil {
		return respondError(r, errorMessage(err))
	}

	return respondSuccess(r, "Left the voice channel.")
}

// HandleNow handles the /now command by re-sending the status message in this channel.
func (h *Handlers) HandleNow(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, "Invalid guild")
	}

	textChannelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return respondError(r, "Invalid channel")
	}

	if err := r.Defer(true); err != nil {
		return err
	}

	if err := h.playback.ShowStatus(context.Background(), guildID, textChannelID); err != nil {
		return editError(r, errorMessage(err))
	}

	return editSuccess(r, "Refreshed the status message.")
}

// HandleList handles the /list command.
func (h *Handlers) HandleList(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	stations := h.playback.ListStations()

	embed := &discordgo.MessageEmbed{
		Title: "Stations",
		Color: colorSuccess,
	}

	if len(stations) == 0 {
		embed.Description = "No predefined stations. Use `/play` with a stream URL."
	} else {
		var sb strings.Builder
		for _, station := range stations {
			fmt.Fprintf(&sb, "- **%s**\n", station.Name)
		}
		embed.Description = sb.String()
	}

	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

// userFacingErrors are the errors whose message can be shown to users as is.
var userFacingErrors = []error{
	usecases.ErrInvalidStream,
	usecases.ErrUserNotInVoice,
	usecases.ErrConnectTimeout,
	usecases.ErrConnectFailed,
	usecases.ErrPlayFailed,
	usecases.ErrNotPlaying,
	usecases.ErrNotConnected,
}

// errorMessage returns the message shown to users for err.
func errorMessage(err error) string {
	for _, known := range userFacingErrors {
		if errors.Is(err, known) {
			msg := known.Error()
			return strings.ToUpper(msg[:1]) + msg[1:] + "."
		}
	}

	slog.Error("unexpected command error", "error", err)
	return "An unexpected error occurred."
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorError,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondSuccess(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
		},
	})
}

func editError(r bot.Responder, message string) error {
	return editEmbed(r, message, colorError)
}

func editSuccess(r bot.Responder, message string) error {
	return editEmbed(r, message, colorSuccess)
}

func editEmbed(r bot.Responder, message string, color int) error {
	embeds := []*discordgo.MessageEmbed{
		{
			Description: message,
			Color:       color,
		},
	}
	return r.Edit(&discordgo.WebhookEdit{
		Embeds: &embeds,
	})
}
