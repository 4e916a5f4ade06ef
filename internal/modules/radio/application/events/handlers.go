package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// PlaybackEndedFunc is the function signature for applying a player end report.
type PlaybackEndedFunc func(ctx context.Context, guildID snowflake.ID, session uint64, err error)

// PlaybackEventHandler consumes player reports from the bus and hands them to the engine.
// Reports are applied one at a time in the order they were published.
type PlaybackEventHandler struct {
	playbackEndedFunc PlaybackEndedFunc
	bus               *Bus

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// NewPlaybackEventHandler creates a new PlaybackEventHandler.
func NewPlaybackEventHandler(playbackEndedFunc PlaybackEndedFunc, bus *Bus) *PlaybackEventHandler {
	return &PlaybackEventHandler{
		playbackEndedFunc: playbackEndedFunc,
		bus:               bus,
		done:              make(chan struct{}),
	}
}

// Start begins listening for events in a background goroutine.
func (h *PlaybackEventHandler) Start(ctx context.Context) {
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.done:
				return
			case event, ok := <-h.bus.PlaybackEnded():
				if !ok {
					return
				}
				h.handlePlaybackEnded(ctx, event)
			}
		}
	}()

	slog.Debug("playback event handler started")
}

// Stop stops the event handler and waits for the goroutine to finish.
func (h *PlaybackEventHandler) Stop() {
	h.once.Do(func() { close(h.done) })
	h.wg.Wait()
	slog.Debug("playback event handler stopped")
}

func (h *PlaybackEventHandler) handlePlaybackEnded(ctx context.Context, event PlaybackEndedEvent) {
	slog.Debug("playback ended",
		"guild", event.GuildID,
		"session", event.Session,
		"error", event.Err,
	)

	h.playbackEndedFunc(ctx, event.GuildID, event.Session, event.Err)
}
