package ports

import "github.com/disgoorg/snowflake/v2"

// PlaybackEndedEvent is published when the audio player reports the end of a stream.
type PlaybackEndedEvent struct {
	GuildID snowflake.ID
	Session uint64 // Playback generation the report belongs to
	Err     error  // nil for a natural end or a requested stop
}

// EventPublisher defines the interface for handing player reports over to the engine.
type EventPublisher interface {
	PublishPlaybackEnded(event PlaybackEndedEvent)
}
