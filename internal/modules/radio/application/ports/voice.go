package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// VoiceConnector defines the interface for managing voice channel connections.
type VoiceConnector interface {
	// Connect joins the voice channel and returns a handle once the transport is ready.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (domain.VoiceHandle, error)

	// Move switches an existing connection to another channel in the same guild.
	Move(ctx context.Context, handle domain.VoiceHandle, channelID snowflake.ID) error

	// Disconnect leaves the voice channel and releases the transport.
	Disconnect(ctx context.Context, handle domain.VoiceHandle) error
}

// VoiceStateProvider defines the interface for getting Discord voice state information.
type VoiceStateProvider interface {
	// GetUserVoiceChannel returns the voice channel ID the user is currently in.
	// Returns nil if the user is not in a voice channel.
	GetUserVoiceChannel(guildID, userID snowflake.ID) (*snowflake.ID, error)
}
