package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"layeh.com/gopus"
)

type foreignHandle struct{}

func (foreignHandle) GuildID() snowflake.ID   { return 1 }
func (foreignHandle) ChannelID() snowflake.ID { return 2 }
func (foreignHandle) IsConnected() bool       { return true }

func newTestEncoder(t *testing.T) *gopus.Encoder {
	t.Helper()

	encoder, err := gopus.NewEncoder(frameRate, channels, gopus.Audio)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	return encoder
}

// silence returns n frames of raw s16le stereo PCM.
func silence(n int) []byte {
	return make([]byte, n*frameSize*channels*2)
}

func TestFFmpegArgs(t *testing.T) {
	url := "https://radio.example.com/lofi"
	args := ffmpegArgs(url)

	i := slices.Index(args, "-i")
	if i < 0 || i+1 >= len(args) || args[i+1] != url {
		t.Fatalf("expected -i %s in %v", url, args)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f s16le", "-ar 48000", "-ac 2", "pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in %q", want, joined)
		}
	}
}

func TestFFmpegPlayer_Pump(t *testing.T) {
	player := NewFFmpegPlayer("")
	send := make(chan []byte, 10)

	// Three full frames followed by half a frame
	input := append(silence(3), make([]byte, frameSize*channels)...)

	err := player.pump(t.Context(), send, bytes.NewReader(input), newTestEncoder(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(send) != 3 {
		t.Errorf("expected 3 packets, got %d", len(send))
	}
}

func TestFFmpegPlayer_PumpSendTimeout(t *testing.T) {
	player := NewFFmpegPlayer("")
	player.sendTimeout = 10 * time.Millisecond
	send := make(chan []byte) // nobody receives

	err := player.pump(t.Context(), send, bytes.NewReader(silence(1)), newTestEncoder(t))
	if !errors.Is(err, ErrVoiceSendTimeout) {
		t.Errorf("expected ErrVoiceSendTimeout, got %v", err)
	}
}

func TestFFmpegPlayer_PumpCancelled(t *testing.T) {
	player := NewFFmpegPlayer("")
	send := make(chan []byte)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := player.pump(ctx, send, bytes.NewReader(silence(1)), newTestEncoder(t))
	if err != nil {
		t.Errorf("expected nil after cancellation, got %v", err)
	}
}

func TestStreamResult(t *testing.T) {
	pumpErr := errors.New("read failed")
	waitErr := errors.New("exit status 1")

	tests := []struct {
		name     string
		stopped  bool
		pumpErr  error
		waitErr  error
		stderr   string
		wantNil  bool
		wantIs   error
		contains string
	}{
		{name: "natural end", wantNil: true},
		{name: "stopped wins", stopped: true, pumpErr: pumpErr, waitErr: waitErr, wantNil: true},
		{name: "pump error", pumpErr: pumpErr, waitErr: waitErr, wantIs: pumpErr},
		{
			name:     "ffmpeg failure with stderr",
			waitErr:  waitErr,
			stderr:   "  Server returned 404 Not Found\n",
			wantIs:   waitErr,
			contains: "404 Not Found",
		},
		{name: "ffmpeg failure", waitErr: waitErr, wantIs: waitErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := streamResult(tt.stopped, tt.pumpErr, tt.waitErr, tt.stderr)
			if tt.wantNil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("expected %v, got %v", tt.wantIs, err)
			}
			if tt.contains != "" && !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("expected %q in %q", tt.contains, err.Error())
			}
		})
	}
}

func TestFFmpegPlayer_ForeignHandle(t *testing.T) {
	player := NewFFmpegPlayer("")

	err := player.Play(t.Context(), foreignHandle{}, "https://radio.example.com", func(error) {})
	if !errors.Is(err, ErrForeignHandle) {
		t.Errorf("expected ErrForeignHandle, got %v", err)
	}
}

func TestFFmpegPlayer_VoiceNotReady(t *testing.T) {
	player := NewFFmpegPlayer("")
	handle := &discordVoiceHandle{guildID: 1, vc: &discordgo.VoiceConnection{}}

	err := player.Play(t.Context(), handle, "https://radio.example.com", func(error) {})
	if !errors.Is(err, ErrVoiceNotReady) {
		t.Errorf("expected ErrVoiceNotReady, got %v", err)
	}
	if player.IsActive(handle) {
		t.Error("expected no active stream")
	}
}

func TestFFmpegPlayer_StopWithoutStream(t *testing.T) {
	player := NewFFmpegPlayer("")

	if err := player.Stop(t.Context(), foreignHandle{}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if player.IsActive(foreignHandle{}) {
		t.Error("expected no active stream")
	}
}
