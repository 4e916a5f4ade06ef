package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/usecases"
)

// Supervisor is the part of the playback service that reacts to gateway events.
type Supervisor interface {
	HandleBotVoiceStateChange(ctx context.Context, guildID, channelID snowflake.ID)
	StopFromSurface(ctx context.Context, guildID, messageID snowflake.ID) error
	Reconcile(ctx context.Context)
}

// stopNoticeLifetime is how long the stop confirmation stays in the channel.
const stopNoticeLifetime = 10 * time.Second

// MessageClient is the part of the Discord REST API the event handlers use.
type MessageClient interface {
	MessageReactionRemove(
		channelID, messageID, emojiID, userID string,
		options ...discordgo.RequestOption,
	) error
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// EventHandlers handles Discord gateway events for the radio.
type EventHandlers struct {
	botID      snowflake.ID
	supervisor Supervisor
	messages   MessageClient
	scheduler  ports.Scheduler
}

// NewEventHandlers creates a new EventHandlers.
// The scheduler deletes the temporary stop confirmations.
func NewEventHandlers(
	botID snowflake.ID,
	supervisor Supervisor,
	messages MessageClient,
	scheduler ports.Scheduler,
) *EventHandlers {
	return &EventHandlers{
		botID:      botID,
		supervisor: supervisor,
		messages:   messages,
		scheduler:  scheduler,
	}
}

// HandleVoiceStateUpdate handles VoiceStateUpdate events for the bot.
func (h *EventHandlers) HandleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	// Only handle updates for the bot itself
	if event.VoiceState == nil || event.UserID != h.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// Zero means disconnected
	var channelID snowflake.ID
	if event.ChannelID != "" {
		channelID, err = snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
	}

	h.supervisor.HandleBotVoiceStateChange(context.Background(), guildID, channelID)
}

// HandleMessageReactionAdd stops playback when a user adds the stop reaction
// to the live status message.
func (h *EventHandlers) HandleMessageReactionAdd(
	_ *discordgo.Session,
	event *discordgo.MessageReactionAdd,
) {
	if !h.isStopReaction(event) {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		return
	}
	messageID, err := snowflake.Parse(event.MessageID)
	if err != nil {
		return
	}

	err = h.supervisor.StopFromSurface(context.Background(), guildID, messageID)
	if errors.Is(err, usecases.ErrNotStatusSurface) {
		return
	}
	stopped := err == nil
	if stopped {
		slog.Info("stopped playback from reaction", "guild", guildID, "user", event.UserID)
	} else {
		slog.Debug("stop reaction ignored", "guild", guildID, "error", err)
	}

	// The status message may already be gone; a failure here is harmless.
	if err := h.messages.MessageReactionRemove(
		event.ChannelID,
		event.MessageID,
		ports.StopReaction,
		event.UserID,
	); err != nil {
		slog.Debug("failed to remove stop reaction", "guild", guildID, "error", err)
	}

	if stopped {
		h.sendStopNotice(guildID, event.ChannelID, event.UserID)
	}
}

// sendStopNotice tells the channel who stopped playback and deletes the
// notice again after stopNoticeLifetime.
func (h *EventHandlers) sendStopNotice(guildID snowflake.ID, channelID, userID string) {
	notice, err := h.messages.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         fmt.Sprintf("⏹️ Playback stopped by <@%s>.", userID),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	})
	if err != nil {
		slog.Warn("failed to send stop confirmation", "guild", guildID, "error", err)
		return
	}

	h.scheduler.Schedule(stopNoticeLifetime, func() {
		if err := h.messages.ChannelMessageDelete(channelID, notice.ID); err != nil {
			slog.Debug("failed to delete stop confirmation", "guild", guildID, "error", err)
		}
	})
}

func (h *EventHandlers) isStopReaction(event *discordgo.MessageReactionAdd) bool {
	if event.MessageReaction == nil || event.GuildID == "" {
		return false
	}
	if event.UserID == h.botID.String() {
		return false
	}
	if event.Member != nil && event.Member.User != nil && event.Member.User.Bot {
		return false
	}
	return event.Emoji.Name == ports.StopReaction
}

// HandleReady reconciles playback after the gateway session was re-established.
func (h *EventHandlers) HandleReady(_ *discordgo.Session, _ *discordgo.Ready) {
	slog.Debug("gateway ready, reconciling playback")
	h.supervisor.Reconcile(context.Background())
}

// HandleResumed reconciles playback after the gateway session was resumed.
func (h *EventHandlers) HandleResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	slog.Debug("gateway resumed, reconciling playback")
	h.supervisor.Reconcile(context.Background())
}
