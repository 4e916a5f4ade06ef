package domain

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// StatusMessage stores the channel and message ID of the "Now Playing" message.
// Both values are needed for deletion since the message may live in a different channel
// than the current text channel if the user switched channels while playing.
type StatusMessage struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

func NewStatusMessage(channelID snowflake.ID, messageID snowflake.ID) StatusMessage {
	return StatusMessage{
		ChannelID: channelID,
		MessageID: messageID,
	}
}

// GuildState is the desired and observed playback status of a single guild.
// It is not safe for concurrent use; callers serialise access per guild.
type GuildState struct {
	guildID         snowflake.ID
	desiredPlaying  bool
	stream          Stream
	requesterID     snowflake.ID
	voiceChannelID  snowflake.ID   // Voice channel to connect to
	textChannelID   snowflake.ID   // Text channel for the status message
	retryCount      int            // Consecutive failures since the last manual play/stop
	statusMessage   *StatusMessage // Live "Now Playing" message, nil if none
	currentMetadata string         // Last seen stream title
	startedAt       time.Time      // When the current stream started playing
	connection      VoiceHandle    // nil when not connected
	phase           Phase
	session         uint64 // Incremented on every play invocation
	rehydrating     bool

	// Disconnects issued by the bot whose gateway report has not arrived yet.
	pendingDisconnects     int
	pendingDisconnectUntil time.Time
}

// NewGuildState creates an idle GuildState for the given guild.
func NewGuildState(guildID snowflake.ID) *GuildState {
	return &GuildState{
		guildID: guildID,
		phase:   PhaseIdle,
	}
}

// NewGuildStateFromRecord rebuilds the playback intent stored in a PersistedRecord.
// The returned state wants to play but has no connection yet.
func NewGuildStateFromRecord(guildID snowflake.ID, record PersistedRecord) *GuildState {
	state := NewGuildState(guildID)
	state.ApplyRecord(record)
	return state
}

// ApplyRecord overwrites the playback intent with the persisted one.
func (g *GuildState) ApplyRecord(record PersistedRecord) {
	g.desiredPlaying = true
	g.stream = Stream{URL: record.StreamURL, Name: record.StreamName}
	g.requesterID = record.RequesterID
	g.voiceChannelID = record.VoiceChannelID
	g.textChannelID = record.TextChannelID
	g.retryCount = 0
	g.connection = nil
}

// GuildID returns the guild ID.
func (g *GuildState) GuildID() snowflake.ID {
	return g.guildID
}

// DesiredPlaying returns true if audio is intended to be flowing.
func (g *GuildState) DesiredPlaying() bool {
	return g.desiredPlaying
}

// SetDesiredPlaying sets the playback intent.
func (g *GuildState) SetDesiredPlaying(desired bool) {
	g.desiredPlaying = desired
}

// Stream returns the target stream.
func (g *GuildState) Stream() Stream {
	return g.stream
}

// SetStream updates the target stream.
func (g *GuildState) SetStream(stream Stream) {
	g.stream = stream
}

// RequesterID returns the user who requested the stream.
func (g *GuildState) RequesterID() snowflake.ID {
	return g.requesterID
}

// SetRequesterID updates the requester.
func (g *GuildState) SetRequesterID(userID snowflake.ID) {
	g.requesterID = userID
}

// VoiceChannelID returns the voice channel playback should happen in.
func (g *GuildState) VoiceChannelID() snowflake.ID {
	return g.voiceChannelID
}

// SetVoiceChannelID updates the voice channel ID.
func (g *GuildState) SetVoiceChannelID(channelID snowflake.ID) {
	g.voiceChannelID = channelID
}

// TextChannelID returns the channel status messages are posted to.
func (g *GuildState) TextChannelID() snowflake.ID {
	return g.textChannelID
}

// SetTextChannelID updates the text channel ID.
func (g *GuildState) SetTextChannelID(channelID snowflake.ID) {
	g.textChannelID = channelID
}

// RetryCount returns the number of consecutive failed attempts.
func (g *GuildState) RetryCount() int {
	return g.retryCount
}

// IncrementRetryCount records a failed attempt and returns the new count.
func (g *GuildState) IncrementRetryCount() int {
	g.retryCount++
	return g.retryCount
}

// ResetRetryCount clears the failure counter.
func (g *GuildState) ResetRetryCount() {
	g.retryCount = 0
}

// StatusMessage returns a copy of the live status message info, or nil.
func (g *GuildState) StatusMessage() *StatusMessage {
	if g.statusMessage == nil {
		return nil
	}
	return &StatusMessage{
		ChannelID: g.statusMessage.ChannelID,
		MessageID: g.statusMessage.MessageID,
	}
}

// SetStatusMessage stores the live status message info. Pass nil to clear it.
func (g *GuildState) SetStatusMessage(message *StatusMessage) {
	if message == nil {
		g.statusMessage = nil
		return
	}
	g.statusMessage = &StatusMessage{
		ChannelID: message.ChannelID,
		MessageID: message.MessageID,
	}
}

// IsStatusMessage returns true if messageID identifies the live status message.
func (g *GuildState) IsStatusMessage(messageID snowflake.ID) bool {
	return g.statusMessage != nil && g.statusMessage.MessageID == messageID
}

// CurrentMetadata returns the last seen stream title, empty if unknown.
func (g *GuildState) CurrentMetadata() string {
	return g.currentMetadata
}

// SetCurrentMetadata updates the stream title.
func (g *GuildState) SetCurrentMetadata(title string) {
	g.currentMetadata = title
}

// StartedAt returns when the current stream started playing.
func (g *GuildState) StartedAt() time.Time {
	return g.startedAt
}

// SetStartedAt records when the current stream started playing.
func (g *GuildState) SetStartedAt(t time.Time) {
	g.startedAt = t
}

// Connection returns the voice handle, or nil if not connected.
func (g *GuildState) Connection() VoiceHandle {
	return g.connection
}

// SetConnection stores the voice handle. Pass nil to clear it.
func (g *GuildState) SetConnection(handle VoiceHandle) {
	g.connection = handle
}

// HasLiveConnection returns true if a handle exists and reports itself connected.
func (g *GuildState) HasLiveConnection() bool {
	return g.connection != nil && g.connection.IsConnected()
}

// Phase returns the current lifecycle phase.
func (g *GuildState) Phase() Phase {
	return g.phase
}

// SetPhase updates the lifecycle phase.
func (g *GuildState) SetPhase(phase Phase) {
	g.phase = phase
}

// Session returns the current playback generation.
func (g *GuildState) Session() uint64 {
	return g.session
}

// NextSession starts a new playback generation and returns it.
func (g *GuildState) NextSession() uint64 {
	g.session++
	return g.session
}

// ExpectDisconnect records that the bot is about to leave voice itself, so the
// gateway's report of it arriving before until is not a lost connection.
func (g *GuildState) ExpectDisconnect(until time.Time) {
	g.pendingDisconnects++
	if until.After(g.pendingDisconnectUntil) {
		g.pendingDisconnectUntil = until
	}
}

// ConsumeExpectedDisconnect returns true if a disconnect report at now belongs
// to a disconnect the bot issued itself. Expired expectations are dropped.
func (g *GuildState) ConsumeExpectedDisconnect(now time.Time) bool {
	if g.pendingDisconnects == 0 {
		return false
	}
	if now.After(g.pendingDisconnectUntil) {
		g.pendingDisconnects = 0
		return false
	}
	g.pendingDisconnects--
	return true
}

// IsRehydrating returns true while startup restoration is in progress.
func (g *GuildState) IsRehydrating() bool {
	return g.rehydrating
}

// SetRehydrating marks or clears startup restoration.
func (g *GuildState) SetRehydrating(rehydrating bool) {
	g.rehydrating = rehydrating
}

// IsPlayable returns true if the stream and voice channel are all known.
func (g *GuildState) IsPlayable() bool {
	return g.stream.URL != "" && g.stream.Name != "" && g.voiceChannelID != 0
}

// Record returns the durable subset of the state.
// The second return value is false when the state must not be persisted.
func (g *GuildState) Record() (PersistedRecord, bool) {
	if !g.desiredPlaying || !g.IsPlayable() {
		return PersistedRecord{}, false
	}
	return PersistedRecord{
		VoiceChannelID: g.voiceChannelID,
		TextChannelID:  g.textChannelID,
		StreamURL:      g.stream.URL,
		StreamName:     g.stream.Name,
		RequesterID:    g.requesterID,
	}, true
}
