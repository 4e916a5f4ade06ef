package infrastructure

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
	"layeh.com/gopus"
)

// Opus parameters required by Discord voice.
const (
	frameRate = 48000
	channels  = 2
	frameSize = 960 // 20ms at 48kHz
	maxPacket = 1000
)

const defaultSendTimeout = 5 * time.Second

// Errors reported by FFmpegPlayer.
var (
	ErrVoiceNotReady    = errors.New("voice connection is not ready")
	ErrVoiceSendTimeout = errors.New("timed out sending audio to voice connection")
)

// ffmpegStream is one running ffmpeg process feeding a voice connection.
type ffmpegStream struct {
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
}

// FFmpegPlayer decodes streams with an ffmpeg subprocess and sends them as Opus
// over discordgo voice connections.
type FFmpegPlayer struct {
	ffmpegPath  string
	sendTimeout time.Duration

	mu      sync.Mutex
	streams map[snowflake.ID]*ffmpegStream
}

// NewFFmpegPlayer creates a new FFmpegPlayer using the ffmpeg binary at ffmpegPath.
func NewFFmpegPlayer(ffmpegPath string) *FFmpegPlayer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegPlayer{
		ffmpegPath:  ffmpegPath,
		sendTimeout: defaultSendTimeout,
		streams:     make(map[snowflake.ID]*ffmpegStream),
	}
}

// ffmpegArgs returns the arguments decoding url into raw 48kHz stereo PCM on stdout.
func ffmpegArgs(url string) []string {
	return []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-vn",
		"-f", "s16le",
		"-ar", fmt.Sprint(frameRate),
		"-ac", fmt.Sprint(channels),
		"-loglevel", "error",
		"pipe:1",
	}
}

// Play starts ffmpeg for url and streams its output over handle.
// An already running stream for the same guild is stopped first.
func (p *FFmpegPlayer) Play(
	ctx context.Context,
	handle domain.VoiceHandle,
	url string,
	onEnded func(error),
) error {
	h, ok := handle.(*discordVoiceHandle)
	if !ok {
		return ErrForeignHandle
	}
	if !h.IsConnected() {
		return ErrVoiceNotReady
	}

	if err := p.Stop(ctx, handle); err != nil {
		return fmt.Errorf("failed to stop previous stream: %w", err)
	}

	encoder, err := gopus.NewEncoder(frameRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// The stream outlives the request that started it.
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	cmd := exec.CommandContext(streamCtx, p.ffmpegPath, ffmpegArgs(url)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	stream := &ffmpegStream{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	p.streams[h.guildID] = stream
	p.mu.Unlock()

	slog.Debug("ffmpeg stream started", "guild", h.guildID, "url", url, "pid", cmd.Process.Pid)

	go func() {
		defer close(stream.done)
		defer p.forget(h.guildID, stream)

		_ = h.vc.Speaking(true)
		pumpErr := p.pump(streamCtx, h.vc.OpusSend, stdout, encoder)
		_ = h.vc.Speaking(false)

		// Make sure ffmpeg is gone before waiting on it.
		cancel()
		waitErr := cmd.Wait()

		onEnded(streamResult(stream.stopped.Load(), pumpErr, waitErr, stderr.String()))
	}()

	return nil
}

// streamResult decides what a finished stream reports to its owner.
func streamResult(stopped bool, pumpErr, waitErr error, stderr string) error {
	switch {
	case stopped:
		return nil
	case pumpErr != nil:
		return pumpErr
	case waitErr != nil:
		if msg := strings.TrimSpace(stderr); msg != "" {
			return fmt.Errorf("ffmpeg exited: %w: %s", waitErr, msg)
		}
		return fmt.Errorf("ffmpeg exited: %w", waitErr)
	default:
		return nil
	}
}

// pump encodes PCM frames from r and sends them to send until r is exhausted.
// A partial trailing frame is dropped.
func (p *FFmpegPlayer) pump(
	ctx context.Context,
	send chan<- []byte,
	r io.Reader,
	encoder *gopus.Encoder,
) error {
	pcm := make([]int16, frameSize*channels)

	for {
		if err := binary.Read(r, binary.LittleEndian, pcm); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read pcm: %w", err)
		}

		packet, err := encoder.Encode(pcm, frameSize, maxPacket)
		if err != nil {
			return fmt.Errorf("failed to encode opus: %w", err)
		}

		timer := time.NewTimer(p.sendTimeout)
		select {
		case send <- packet:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			return ErrVoiceSendTimeout
		}
	}
}

// Stop stops the stream of the handle's guild and waits for it to finish.
// Its onEnded callback receives nil.
func (p *FFmpegPlayer) Stop(ctx context.Context, handle domain.VoiceHandle) error {
	p.mu.Lock()
	stream := p.streams[handle.GuildID()]
	p.mu.Unlock()

	if stream == nil {
		return nil
	}

	stream.stopped.Store(true)
	stream.cancel()

	select {
	case <-stream.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsActive returns true while a stream is running for the handle's guild.
func (p *FFmpegPlayer) IsActive(handle domain.VoiceHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.streams[handle.GuildID()]
	return ok
}

// Shutdown stops every running stream.
func (p *FFmpegPlayer) Shutdown(ctx context.Context) {
	p.mu.Lock()
	streams := make([]*ffmpegStream, 0, len(p.streams))
	for _, stream := range p.streams {
		streams = append(streams, stream)
	}
	p.mu.Unlock()

	for _, stream := range streams {
		stream.stopped.Store(true)
		stream.cancel()
	}
	for _, stream := range streams {
		select {
		case <-stream.done:
		case <-ctx.Done():
			return
		}
	}
}

func (p *FFmpegPlayer) forget(guildID snowflake.ID, stream *ffmpegStream) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.streams[guildID] == stream {
		delete(p.streams, guildID)
	}
}

// Ensure FFmpegPlayer implements ports.AudioPlayer.
var _ ports.AudioPlayer = (*FFmpegPlayer)(nil)
