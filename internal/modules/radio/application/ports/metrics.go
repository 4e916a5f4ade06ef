package ports

// PlaybackMetrics records playback engine activity.
type PlaybackMetrics interface {
	PlaybackStarted()
	PlaybackFailed(reason string)
	RetryScheduled()
	GaveUp()
	MetadataUpdated()
	SetActiveGuilds(n int)
}

// Failure reasons passed to PlaybackMetrics.PlaybackFailed.
const (
	FailureConnect = "connect"
	FailurePlay    = "play"
	FailureStream  = "stream"
)

// NopMetrics is a PlaybackMetrics that discards everything.
type NopMetrics struct{}

func (NopMetrics) PlaybackStarted()      {}
func (NopMetrics) PlaybackFailed(string) {}
func (NopMetrics) RetryScheduled()       {}
func (NopMetrics) GaveUp()               {}
func (NopMetrics) MetadataUpdated()      {}
func (NopMetrics) SetActiveGuilds(int)   {}
