package events

import (
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
)

// Re-export event types from ports for use by event handlers.
type (
	PlaybackEndedEvent = ports.PlaybackEndedEvent
)
