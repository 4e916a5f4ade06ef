package domain

import (
	"fmt"
	"time"
)

// PingResult represents the result of a ping operation.
type PingResult struct {
	Message   string
	Latency   time.Duration // Zero until the first heartbeat was acknowledged
	Timestamp time.Time
}

// NewPingResult creates a new PingResult for the measured gateway latency.
func NewPingResult(latency time.Duration) *PingResult {
	message := "Pong! Gateway latency is not measured yet."
	if latency > 0 {
		message = fmt.Sprintf("Pong! Gateway latency: %dms", latency.Milliseconds())
	}

	return &PingResult{
		Message:   message,
		Latency:   latency,
		Timestamp: time.Now(),
	}
}
