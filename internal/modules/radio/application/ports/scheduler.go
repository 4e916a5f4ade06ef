package ports

import "time"

// Scheduler runs functions after a delay.
type Scheduler interface {
	// Schedule calls fn on its own goroutine once delay has elapsed.
	Schedule(delay time.Duration, fn func())
}
