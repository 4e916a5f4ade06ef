package ports

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ErrSurfaceNotFound is returned when the status message no longer exists.
var ErrSurfaceNotFound = errors.New("status message not found")

// StopReaction is the emoji attached to every status message. Adding it stops playback.
const StopReaction = "⏹️"

// StatusInfo contains information for the "Now Playing" status message.
type StatusInfo struct {
	StreamName         string
	StreamURL          string
	RequesterID        snowflake.ID
	RequesterName      string
	RequesterAvatarURL string
	Metadata           string // Current stream title, empty if unknown
	StartedAt          time.Time
}

// StatusSurface defines the interface for managing the "Now Playing" message.
type StatusSurface interface {
	// Send posts a new status message with the stop reaction and returns its ID.
	Send(ctx context.Context, channelID snowflake.ID, info *StatusInfo) (messageID snowflake.ID, err error)

	// Edit updates the status message in place.
	// Returns ErrSurfaceNotFound if the message was deleted.
	Edit(ctx context.Context, channelID, messageID snowflake.ID, info *StatusInfo) error

	// Delete removes the status message.
	Delete(ctx context.Context, channelID, messageID snowflake.ID) error
}
