package application

import (
	"time"

	"github.com/sglre6355/sgrradio/internal/modules/ping/domain"
)

// LatencySource reports the gateway heartbeat round trip.
type LatencySource interface {
	HeartbeatLatency() time.Duration
}

// PingInteractor handles the ping use case.
type PingInteractor struct {
	source LatencySource
}

// NewPingInteractor creates a new PingInteractor.
func NewPingInteractor(source LatencySource) *PingInteractor {
	return &PingInteractor{
		source: source,
	}
}

// Execute performs the ping operation and returns the result.
func (p *PingInteractor) Execute() *domain.PingResult {
	return domain.NewPingResult(p.source.HeartbeatLatency())
}
