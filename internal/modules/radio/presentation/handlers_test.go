package presentation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/bot"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/usecases"
)

func TestHandlePlay(t *testing.T) {
	t.Run("starts playback and edits the deferred reply", func(t *testing.T) {
		playback := &mockPlayback{
			playOutput: &usecases.PlayOutput{StreamName: "Lofi", VoiceChannelID: 42},
		}
		h := NewHandlers(playback)
		r := &bot.MockResponder{}

		err := h.HandlePlay(nil, newCommandInteraction("play", stringOption("stream", "lofi", false)), r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !r.Deferred || r.Ephemeral {
			t.Errorf("expected a public deferred reply, got deferred=%v ephemeral=%v", r.Deferred, r.Ephemeral)
		}
		if playback.playInput == nil {
			t.Fatal("expected RequestPlay to be called")
		}
		want := usecases.PlayInput{
			GuildID:       snowflake.MustParse(testGuildID),
			UserID:        snowflake.MustParse(testUserID),
			TextChannelID: snowflake.MustParse(testChannelID),
			Query:         "lofi",
		}
		if *playback.playInput != want {
			t.Errorf("expected input %+v, got %+v", want, *playback.playInput)
		}
		if got := editDescription(r.LastEdit); got != "Now playing: **Lofi**" {
			t.Errorf("unexpected reply %q", got)
		}
	})

	t.Run("shows user facing errors", func(t *testing.T) {
		playback := &mockPlayback{
			playErr: fmt.Errorf("resolve: %w", usecases.ErrUserNotInVoice),
		}
		h := NewHandlers(playback)
		r := &bot.MockResponder{}

		err := h.HandlePlay(nil, newCommandInteraction("play", stringOption("stream", "lofi", false)), r)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := editDescription(r.LastEdit); got != "You must be in a voice channel." {
			t.Errorf("unexpected reply %q", got)
		}
		if color := (*r.LastEdit.Embeds)[0].Color; color != colorError {
			t.Errorf("expected error color, got %#x", color)
		}
	})

	t.Run("rejects direct messages", func(t *testing.T) {
		playback := &mockPlayback{}
		h := NewHandlers(playback)
		r := &bot.MockResponder{}

		i := newCommandInteraction("play", stringOption("stream", "lofi", false))
		i.Member = nil
		i.User = &discordgo.User{ID: testUserID}

		if err := h.HandlePlay(nil, i, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if r.Deferred {
			t.Error("expected no deferred reply")
		}
		if playback.playInput != nil {
			t.Error("expected RequestPlay not to be called")
		}
		if r.LastResponse.Data.Flags != discordgo.MessageFlagsEphemeral {
			t.Error("expected an ephemeral error")
		}
	})

	t.Run("returns defer errors", func(t *testing.T) {
		h := NewHandlers(&mockPlayback{})
		wantErr := errors.New("discord unavailable")
		r := &bot.MockResponder{Err: wantErr}

		err := h.HandlePlay(nil, newCommandInteraction("play", stringOption("stream", "lofi", false)), r)
		if !errors.Is(err, wantErr) {
			t.Errorf("expected %v, got %v", wantErr, err)
		}
	})
}

func TestHandleJoin(t *testing.T) {
	t.Run("joins the user's voice channel", func(t *testing.T) {
		playback := &mockPlayback{
			joinOutput: &usecases.JoinOutput{VoiceChannelID: 42},
		}
		h := NewHandlers(playback)
		r := &bot.MockResponder{}

		if err := h.HandleJoin(nil, newCommandInteraction("join"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !r.Deferred {
			t.Error("expected a deferred reply")
		}
		if playback.joinInput == nil {
			t.Fatal("expected Join to be called")
		}
		want := usecases.JoinInput{
			GuildID: snowflake.MustParse(testGuildID),
			UserID:  snowflake.MustParse(testUserID),
		}
		if *playback.joinInput != want {
			t.Errorf("expected input %+v, got %+v", want, *playback.joinInput)
		}
		if got := editDescription(r.LastEdit); got != "Joined <#42>." {
			t.Errorf("unexpected reply %q", got)
		}
	})

	t.Run("user not in voice", func(t *testing.T) {
		h := NewHandlers(&mockPlayback{joinErr: usecases.ErrUserNotInVoice})
		r := &bot.MockResponder{}

		if err := h.HandleJoin(nil, newCommandInteraction("join"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := editDescription(r.LastEdit); got != "You must be in a voice channel." {
			t.Errorf("unexpected reply %q", got)
		}
	})
}

func TestHandleStop(t *testing.T) {
	tests := []struct {
		name    string
		stopErr error
		want    string
	}{
		{
			name: "stops playback",
			want: "Stopped the radio.",
		},
		{
			name:    "nothing playing",
			stopErr: usecases.ErrNotPlaying,
			want:    "Nothing is currently playing.",
		},
		{
			name:    "unexpected error",
			stopErr: errors.New("boom"),
			want:    "An unexpected error occurred.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			playback := &mockPlayback{stopErr: tt.stopErr}
			h := NewHandlers(playback)
			r := &bot.MockResponder{}

			if err := h.HandleStop(nil, newCommandInteraction("stop"), r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(playback.stopped) != 1 || playback.stopped[0] != snowflake.MustParse(testGuildID) {
				t.Errorf("expected stop for guild %s, got %v", testGuildID, playback.stopped)
			}
			if got := responseDescription(r.LastResponse); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHandleLeave(t *testing.T) {
	t.Run("leaves the voice channel", func(t *testing.T) {
		playback := &mockPlayback{}
		h := NewHandlers(playback)
		r := &bot.MockResponder{}

		if err := h.HandleLeave(nil, newCommandInteraction("leave"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(playback.left) != 1 {
			t.Fatalf("expected one leave call, got %d", len(playback.left))
		}
		if got := responseDescription(r.LastResponse); got != "Left the voice channel." {
			t.Errorf("unexpected reply %q", got)
		}
	})

	t.Run("not connected", func(t *testing.T) {
		h := NewHandlers(&mockPlayback{leaveErr: usecases.ErrNotConnected})
		r := &bot.MockResponder{}

		if err := h.HandleLeave(nil, newCommandInteraction("leave"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := responseDescription(r.LastResponse); got != "Not connected to a voice channel." {
			t.Errorf("unexpected reply %q", got)
		}
		if r.LastResponse.Data.Flags != discordgo.MessageFlagsEphemeral {
			t.Error("expected an ephemeral error")
		}
	})
}

func TestHandleNow(t *testing.T) {
	t.Run("re-sends the status message", func(t *testing.T) {
		playback := &mockPlayback{}
		h := NewHandlers(playback)
		r := &bot.MockResponder{}

		if err := h.HandleNow(nil, newCommandInteraction("now"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !r.Deferred || !r.Ephemeral {
			t.Error("expected an ephemeral deferred reply")
		}
		if len(playback.shown) != 1 || playback.shown[0] != snowflake.MustParse(testChannelID) {
			t.Errorf("expected status in channel %s, got %v", testChannelID, playback.shown)
		}
		if got := editDescription(r.LastEdit); got != "Refreshed the status message." {
			t.Errorf("unexpected reply %q", got)
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		h := NewHandlers(&mockPlayback{showErr: usecases.ErrNotPlaying})
		r := &bot.MockResponder{}

		if err := h.HandleNow(nil, newCommandInteraction("now"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := editDescription(r.LastEdit); got != "Nothing is currently playing." {
			t.Errorf("unexpected reply %q", got)
		}
	})
}

func TestHandleList(t *testing.T) {
	t.Run("lists stations", func(t *testing.T) {
		h := NewHandlers(&mockPlayback{
			stations: []usecases.Station{
				{Name: "Jazz", URL: "https://example.com/jazz"},
				{Name: "Lofi", URL: "https://example.com/lofi"},
			},
		})
		r := &bot.MockResponder{}

		if err := h.HandleList(nil, newCommandInteraction("list"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := responseDescription(r.LastResponse)
		if got != "- **Jazz**\n- **Lofi**\n" {
			t.Errorf("unexpected station list %q", got)
		}
	})

	t.Run("no stations", func(t *testing.T) {
		h := NewHandlers(&mockPlayback{})
		r := &bot.MockResponder{}

		if err := h.HandleList(nil, newCommandInteraction("list"), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := responseDescription(r.LastResponse); !strings.Contains(got, "No predefined stations") {
			t.Errorf("unexpected reply %q", got)
		}
	})
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{usecases.ErrInvalidStream, "Not a valid URL or predefined stream name."},
		{usecases.ErrConnectTimeout, "Timed out connecting to the voice channel."},
		{fmt.Errorf("join: %w", usecases.ErrConnectFailed), "Failed to connect to the voice channel."},
		{usecases.ErrPlayFailed, "Failed to start the stream."},
		{errors.New("internal"), "An unexpected error occurred."},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := errorMessage(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
