package domain

import "github.com/disgoorg/snowflake/v2"

// VoiceHandle is a live voice transport connection for one guild.
// Implementations are provided by the audio backend.
type VoiceHandle interface {
	// GuildID returns the guild the connection belongs to.
	GuildID() snowflake.ID

	// ChannelID returns the voice channel the connection is currently in.
	ChannelID() snowflake.ID

	// IsConnected returns true while the transport is usable.
	IsConnected() bool
}
