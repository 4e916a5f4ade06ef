package ports

import (
	"context"

	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// AudioPlayer defines the interface for streaming audio into a voice connection.
type AudioPlayer interface {
	// Play starts streaming url over handle. It returns once the stream has been
	// accepted; onEnded is called exactly once, from any goroutine, when playback
	// stops. A nil error passed to onEnded means a natural end or a requested stop.
	Play(ctx context.Context, handle domain.VoiceHandle, url string, onEnded func(error)) error

	// Stop stops the current stream. The pending onEnded callback receives nil.
	Stop(ctx context.Context, handle domain.VoiceHandle) error

	// IsActive returns true while a stream is being sent over handle.
	IsActive(handle domain.VoiceHandle) bool
}
