package domain

// Phase represents where a guild currently is in the playback lifecycle.
type Phase int

const (
	PhaseIdle       Phase = iota // No connection, playback not desired
	PhaseConnecting              // Opening or moving the voice connection
	PhasePlaying                 // Player accepted the stream
	PhaseFailed                  // Between a failed attempt and the next reconnect
	PhaseGivenUp                 // Retry budget exhausted
	PhaseStopped                 // Playback no longer desired, connection may remain
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhasePlaying:
		return "playing"
	case PhaseFailed:
		return "failed"
	case PhaseGivenUp:
		return "given_up"
	case PhaseStopped:
		return "stopped"
	default:
		return "idle"
	}
}
