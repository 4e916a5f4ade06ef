package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
)

// Embed colors.
const (
	colorRadio = 0x1DB954
)

// Notifier manages the "Now Playing" status message in Discord channels.
type Notifier struct {
	session *discordgo.Session
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
	}
}

// Send posts the status embed to the channel, adds the stop reaction and returns the message ID.
func (n *Notifier) Send(
	ctx context.Context,
	channelID snowflake.ID,
	info *ports.StatusInfo,
) (snowflake.ID, error) {
	msg, err := n.session.ChannelMessageSendEmbed(
		channelID.String(),
		buildStatusEmbed(info),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return 0, err
	}
	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return 0, err
	}

	// The message is still tracked without the reaction; /stop keeps working.
	if err := n.session.MessageReactionAdd(
		msg.ChannelID,
		msg.ID,
		ports.StopReaction,
		discordgo.WithContext(ctx),
	); err != nil {
		slog.Warn("failed to add stop reaction",
			"channel_id", channelID,
			"message_id", messageID,
			"error", err,
		)
	}

	return messageID, nil
}

// Edit replaces the embed of an existing status message.
func (n *Notifier) Edit(
	ctx context.Context,
	channelID, messageID snowflake.ID,
	info *ports.StatusInfo,
) error {
	_, err := n.session.ChannelMessageEditEmbed(
		channelID.String(),
		messageID.String(),
		buildStatusEmbed(info),
		discordgo.WithContext(ctx),
	)
	return translateMessageError(err)
}

// Delete deletes the status message from the channel.
func (n *Notifier) Delete(ctx context.Context, channelID, messageID snowflake.ID) error {
	err := n.session.ChannelMessageDelete(
		channelID.String(),
		messageID.String(),
		discordgo.WithContext(ctx),
	)
	return translateMessageError(err)
}

// translateMessageError maps Discord's "unknown message" responses to ports.ErrSurfaceNotFound.
func translateMessageError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownMessage {
			return fmt.Errorf("%w: %w", ports.ErrSurfaceNotFound, err)
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ports.ErrSurfaceNotFound, err)
		}
	}
	return err
}

// buildStatusEmbed renders the status information as an embed.
func buildStatusEmbed(info *ports.StatusInfo) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Now Playing",
		},
		Title: info.StreamName,
		Color: colorRadio,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Stream",
				Value:  fmt.Sprintf("<%s>", info.StreamURL),
				Inline: false,
			},
		},
	}

	if info.Metadata != "" {
		embed.Description = fmt.Sprintf("🎵 %s", info.Metadata)
	}

	if !info.StartedAt.IsZero() {
		embed.Timestamp = info.StartedAt.UTC().Format(time.RFC3339)
	}

	requester := info.RequesterName
	if requester == "" && info.RequesterID != 0 {
		requester = fmt.Sprintf("<@%s>", info.RequesterID)
	}
	if requester != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Requested by %s", requester),
			IconURL: info.RequesterAvatarURL,
		}
	}

	return embed
}

// Ensure Notifier implements ports.StatusSurface.
var _ ports.StatusSurface = (*Notifier)(nil)
