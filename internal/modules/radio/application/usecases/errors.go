package usecases

import (
	"errors"

	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// Errors returned by the radio use cases.
var (
	// ErrInvalidStream is returned when the query is neither a station name nor an HTTP(S) URL.
	ErrInvalidStream = domain.ErrInvalidStream

	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrConnectTimeout is returned when joining or moving to a voice channel takes too long.
	ErrConnectTimeout = errors.New("timed out connecting to the voice channel")

	// ErrConnectFailed is returned when joining or moving to a voice channel fails.
	ErrConnectFailed = errors.New("failed to connect to the voice channel")

	// ErrPlayFailed is returned when the player rejects the stream.
	ErrPlayFailed = errors.New("failed to start the stream")

	// ErrNotPlaying is returned when no stream is currently wanted.
	ErrNotPlaying = errors.New("nothing is currently playing")

	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrNotStatusSurface is returned when a reaction targets a message other than
	// the live status message.
	ErrNotStatusSurface = errors.New("message is not the current status message")
)
