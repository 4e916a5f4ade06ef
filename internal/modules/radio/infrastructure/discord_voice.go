package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// ErrForeignHandle is returned when a backend receives a VoiceHandle created by another backend.
var ErrForeignHandle = errors.New("voice handle belongs to another audio backend")

// discordVoiceHandle wraps a discordgo voice connection.
type discordVoiceHandle struct {
	guildID snowflake.ID
	vc      *discordgo.VoiceConnection
}

func (h *discordVoiceHandle) GuildID() snowflake.ID {
	return h.guildID
}

func (h *discordVoiceHandle) ChannelID() snowflake.ID {
	h.vc.RLock()
	defer h.vc.RUnlock()

	id, err := snowflake.Parse(h.vc.ChannelID)
	if err != nil {
		return 0
	}
	return id
}

func (h *discordVoiceHandle) IsConnected() bool {
	h.vc.RLock()
	defer h.vc.RUnlock()

	return h.vc.Ready
}

// DiscordVoiceConnector joins voice channels through the discordgo voice implementation.
type DiscordVoiceConnector struct {
	session *discordgo.Session

	mu       sync.Mutex
	attempts map[snowflake.ID]uint64 // Latest Connect call per guild
}

// NewDiscordVoiceConnector creates a new DiscordVoiceConnector.
func NewDiscordVoiceConnector(session *discordgo.Session) *DiscordVoiceConnector {
	return &DiscordVoiceConnector{
		session:  session,
		attempts: make(map[snowflake.ID]uint64),
	}
}

type voiceJoinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Connect joins the voice channel deafened and waits until the connection is ready.
func (c *DiscordVoiceConnector) Connect(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) (domain.VoiceHandle, error) {
	attempt := c.nextAttempt(guildID)

	result := make(chan voiceJoinResult, 1)
	go func() {
		vc, err := c.session.ChannelVoiceJoin(guildID.String(), channelID.String(), false, true)
		result <- voiceJoinResult{vc: vc, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("failed to join voice channel: %w", r.err)
		}
		return &discordVoiceHandle{guildID: guildID, vc: r.vc}, nil

	case <-ctx.Done():
		// The join keeps running; drop the connection if nobody asked for a newer one meanwhile.
		go func() {
			r := <-result
			if r.vc == nil || !c.isLatestAttempt(guildID, attempt) {
				return
			}
			slog.Debug("dropping voice connection that became ready after timeout",
				"guild", guildID,
				"channel", channelID,
			)
			if err := r.vc.Disconnect(); err != nil {
				slog.Warn("failed to drop late voice connection", "guild", guildID, "error", err)
			}
		}()
		return nil, ctx.Err()
	}
}

// Move switches the connection to another channel of the same guild.
func (c *DiscordVoiceConnector) Move(
	_ context.Context,
	handle domain.VoiceHandle,
	channelID snowflake.ID,
) error {
	h, ok := handle.(*discordVoiceHandle)
	if !ok {
		return ErrForeignHandle
	}

	if err := h.vc.ChangeChannel(channelID.String(), false, true); err != nil {
		return fmt.Errorf("failed to move voice connection: %w", err)
	}
	return nil
}

// Disconnect leaves the voice channel.
func (c *DiscordVoiceConnector) Disconnect(_ context.Context, handle domain.VoiceHandle) error {
	h, ok := handle.(*discordVoiceHandle)
	if !ok {
		return ErrForeignHandle
	}

	c.nextAttempt(h.guildID)

	if err := h.vc.Disconnect(); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

func (c *DiscordVoiceConnector) nextAttempt(guildID snowflake.ID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts[guildID]++
	return c.attempts[guildID]
}

func (c *DiscordVoiceConnector) isLatestAttempt(guildID snowflake.ID, attempt uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempts[guildID] == attempt
}

// Ensure DiscordVoiceConnector implements ports.VoiceConnector.
var _ ports.VoiceConnector = (*DiscordVoiceConnector)(nil)
