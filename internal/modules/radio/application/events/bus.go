package events

import (
	"log/slog"
	"sync"

	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time check that Bus implements ports.EventPublisher.
var _ ports.EventPublisher = (*Bus)(nil)

// Bus provides a channel-based event bus that moves player reports off the
// player's goroutine.
type Bus struct {
	playbackEnded chan PlaybackEndedEvent

	closed bool
	mu     sync.RWMutex
}

// NewBus creates a new Bus with the given buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	return &Bus{
		playbackEnded: make(chan PlaybackEndedEvent, bufferSize),
	}
}

// PublishPlaybackEnded publishes a PlaybackEndedEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *Bus) PublishPlaybackEnded(event PlaybackEndedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "PlaybackEnded")
		return
	}

	select {
	case b.playbackEnded <- event:
		slog.Debug("published event",
			"type", "PlaybackEnded",
			"guild", event.GuildID,
			"session", event.Session,
		)
	default:
		slog.Warn("event buffer full, dropping event", "type", "PlaybackEnded", "guild", event.GuildID)
	}
}

// PlaybackEnded returns the channel for PlaybackEndedEvent.
func (b *Bus) PlaybackEnded() <-chan PlaybackEndedEvent {
	return b.playbackEnded
}

// Close closes all event channels.
// After calling Close, publishing will no longer send events.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.playbackEnded)

	slog.Debug("event bus closed")
}
