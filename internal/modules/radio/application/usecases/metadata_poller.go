package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
)

// Defaults for MetadataPoller.
const (
	DefaultMetadataInterval = 30 * time.Second
	DefaultMetadataTimeout  = 5 * time.Second
)

// MetadataPoller periodically fetches the stream title of every playing guild
// and pushes changes to the status message. Errors are never escalated.
type MetadataPoller struct {
	playback *PlaybackService
	source   ports.MetadataSource
	interval time.Duration
	timeout  time.Duration
}

// NewMetadataPoller creates a new MetadataPoller.
func NewMetadataPoller(
	playback *PlaybackService,
	source ports.MetadataSource,
	interval, timeout time.Duration,
) *MetadataPoller {
	if interval <= 0 {
		interval = DefaultMetadataInterval
	}
	if timeout <= 0 {
		timeout = DefaultMetadataTimeout
	}

	return &MetadataPoller{
		playback: playback,
		source:   source,
		interval: interval,
		timeout:  timeout,
	}
}

// Run polls on every tick until ctx is cancelled.
func (m *MetadataPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Debug("metadata poller started", "interval", m.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("metadata poller stopped")
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll makes one pass over a snapshot of the known guilds, fetching concurrently.
func (m *MetadataPoller) Poll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, guildID := range m.playback.GuildIDs() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.pollGuild(ctx, guildID)
		}()
	}
	wg.Wait()
}

func (m *MetadataPoller) pollGuild(ctx context.Context, guildID snowflake.ID) {
	streamURL, ok := m.playback.MetadataTarget(guildID)
	if !ok {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	title, err := m.source.FetchTitle(fetchCtx, streamURL)
	if err != nil {
		slog.Debug("skipping metadata update",
			"guild", guildID,
			"error", err,
		)
		return
	}

	m.playback.ApplyMetadata(ctx, guildID, streamURL, title)
}
