package domain

import "github.com/disgoorg/snowflake/v2"

// PersistedRecord is the durable playback intent of a guild.
type PersistedRecord struct {
	VoiceChannelID snowflake.ID `json:"voice_channel_id"`
	TextChannelID  snowflake.ID `json:"text_channel_id"`
	StreamURL      string       `json:"stream_url"`
	StreamName     string       `json:"stream_name"`
	RequesterID    snowflake.ID `json:"requester_id"`
}

// IsComplete returns true if the record carries everything needed to resume playback.
func (r PersistedRecord) IsComplete() bool {
	return r.StreamURL != "" && r.StreamName != "" && r.VoiceChannelID != 0
}
