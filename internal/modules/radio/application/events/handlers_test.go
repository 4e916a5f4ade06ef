package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

type endedCall struct {
	guildID snowflake.ID
	session uint64
	err     error
}

func TestPlaybackEventHandler_PlaybackEnded_CallsFunc(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	calls := make(chan endedCall, 1)
	handler := NewPlaybackEventHandler(
		func(_ context.Context, guildID snowflake.ID, session uint64, err error) {
			calls <- endedCall{guildID: guildID, session: session, err: err}
		},
		bus,
	)

	handler.Start(t.Context())
	defer handler.Stop()

	streamErr := errors.New("connection reset")
	bus.PublishPlaybackEnded(PlaybackEndedEvent{
		GuildID: snowflake.ID(1),
		Session: 3,
		Err:     streamErr,
	})

	select {
	case call := <-calls:
		if call.guildID != snowflake.ID(1) {
			t.Errorf("expected guildID 1, got %d", call.guildID)
		}
		if call.session != 3 {
			t.Errorf("expected session 3, got %d", call.session)
		}
		if !errors.Is(call.err, streamErr) {
			t.Errorf("expected error %v, got %v", streamErr, call.err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("expected playbackEndedFunc to be called")
	}
}

func TestPlaybackEventHandler_PreservesOrder(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	calls := make(chan uint64, 3)
	handler := NewPlaybackEventHandler(
		func(_ context.Context, _ snowflake.ID, session uint64, _ error) {
			calls <- session
		},
		bus,
	)

	handler.Start(t.Context())
	defer handler.Stop()

	for session := uint64(1); session <= 3; session++ {
		bus.PublishPlaybackEnded(PlaybackEndedEvent{GuildID: snowflake.ID(1), Session: session})
	}

	for want := uint64(1); want <= 3; want++ {
		select {
		case got := <-calls:
			if got != want {
				t.Errorf("expected session %d, got %d", want, got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("expected session %d to be handled", want)
		}
	}
}

func TestPlaybackEventHandler_StopIsIdempotent(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	handler := NewPlaybackEventHandler(
		func(context.Context, snowflake.ID, uint64, error) {},
		bus,
	)
	handler.Start(t.Context())

	handler.Stop()
	handler.Stop()
}

func TestBus_PublishAfterClose_DoesNotPanic(t *testing.T) {
	bus := NewBus(1)
	bus.Close()
	bus.Close()

	bus.PublishPlaybackEnded(PlaybackEndedEvent{GuildID: snowflake.ID(1)})
}

func TestBus_FullBuffer_DropsEvent(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	bus.PublishPlaybackEnded(PlaybackEndedEvent{GuildID: snowflake.ID(1), Session: 1})
	bus.PublishPlaybackEnded(PlaybackEndedEvent{GuildID: snowflake.ID(1), Session: 2})

	event := <-bus.PlaybackEnded()
	if event.Session != 1 {
		t.Errorf("expected first event to be kept, got session %d", event.Session)
	}

	select {
	case event := <-bus.PlaybackEnded():
		t.Errorf("expected second event to be dropped, got session %d", event.Session)
	default:
	}
}

func TestNewBus_DefaultBufferSize(t *testing.T) {
	bus := NewBus(0)
	defer bus.Close()

	if cap(bus.playbackEnded) != DefaultEventBufferSize {
		t.Errorf("expected buffer size %d, got %d", DefaultEventBufferSize, cap(bus.playbackEnded))
	}
}
