package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// Errors reported by LavalinkAdapter.
var (
	ErrNoLavalinkNode = errors.New("no available Lavalink node")
	ErrTrackNotFound  = errors.New("lavalink could not load the stream")
	ErrTrackStuck     = errors.New("lavalink track stuck")
	ErrPlayerCleanup  = errors.New("lavalink player cleaned up")
)

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready if both events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer buffers voice events to ensure both VoiceStateUpdate and
// VoiceServerUpdate are received before forwarding to Lavalink.
// This prevents "Partial Lavalink voice state" errors when events arrive out of order.
type voiceEventBuffer struct {
	mu sync.Mutex

	// From VoiceStateUpdate
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	// From VoiceServerUpdate
	hasVoiceServer bool
	token          string
	endpoint       string
}

// setVoiceState stores voice state data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

// setVoiceServer stores voice server data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	// Reset buffer
	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// lavalinkPlayback is the stream currently loaded into a guild's Lavalink player.
type lavalinkPlayback struct {
	encoded string
	onEnded func(error)
	started bool  // Set by the start event; end events before it belong to the previous stream
	failure error // Set by exception or stuck events before the end event arrives
}

// lavalinkHandle is a voice connection managed through Lavalink.
type lavalinkHandle struct {
	guildID snowflake.ID
	adapter *LavalinkAdapter
}

func (h *lavalinkHandle) GuildID() snowflake.ID {
	return h.guildID
}

func (h *lavalinkHandle) ChannelID() snowflake.ID {
	return h.adapter.connectedChannel(h.guildID)
}

func (h *lavalinkHandle) IsConnected() bool {
	return h.adapter.connectedChannel(h.guildID) != 0
}

// LavalinkAdapter wraps DisGoLink to implement the voice and player ports.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild to handle out-of-order events
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	connectedMu sync.RWMutex
	connected   map[snowflake.ID]snowflake.ID // guild -> voice channel

	playbackMu sync.Mutex
	playbacks  map[snowflake.ID]*lavalinkPlayback
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool
}

// NewLavalinkAdapter creates a new LavalinkAdapter and connects to the node.
// The session must be open so the bot's user ID is known.
func NewLavalinkAdapter(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := newLavalinkAdapter(session, botID)

	adapter.link = disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)

	node, err := adapter.link.AddNode(ctx, disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

func newLavalinkAdapter(session *discordgo.Session, botID snowflake.ID) *LavalinkAdapter {
	return &LavalinkAdapter{
		session:      session,
		botID:        botID,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		connected:    make(map[snowflake.ID]snowflake.ID),
		playbacks:    make(map[snowflake.ID]*lavalinkPlayback),
	}
}

// Connect joins the voice channel and waits for both VoiceStateUpdate and
// VoiceServerUpdate before returning.
func (c *LavalinkAdapter) Connect(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) (domain.VoiceHandle, error) {
	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		if c.pending[guildID] == pending {
			delete(c.pending, guildID)
		}
		c.pendingMu.Unlock()
	}()

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	select {
	case <-pending.ready:
		c.setConnected(guildID, channelID)
		return &lavalinkHandle{guildID: guildID, adapter: c}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	}
}

// Move asks Discord to move the bot to another channel of the same guild.
func (c *LavalinkAdapter) Move(
	_ context.Context,
	handle domain.VoiceHandle,
	channelID snowflake.ID,
) error {
	if _, ok := handle.(*lavalinkHandle); !ok {
		return ErrForeignHandle
	}

	err := c.session.ChannelVoiceJoinManual(handle.GuildID().String(), channelID.String(), false, true)
	if err != nil {
		return fmt.Errorf("failed to move voice connection: %w", err)
	}
	c.setConnected(handle.GuildID(), channelID)
	return nil
}

// Disconnect destroys the Lavalink player and leaves the voice channel.
func (c *LavalinkAdapter) Disconnect(ctx context.Context, handle domain.VoiceHandle) error {
	if _, ok := handle.(*lavalinkHandle); !ok {
		return ErrForeignHandle
	}
	guildID := handle.GuildID()

	if player := c.link.ExistingPlayer(guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}
	c.setConnected(guildID, 0)

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// Play resolves url on the best node and starts it on the guild's player.
func (c *LavalinkAdapter) Play(
	ctx context.Context,
	handle domain.VoiceHandle,
	url string,
	onEnded func(error),
) error {
	if _, ok := handle.(*lavalinkHandle); !ok {
		return ErrForeignHandle
	}
	guildID := handle.GuildID()

	node := c.link.BestNode()
	if node == nil {
		return ErrNoLavalinkNode
	}

	result, err := node.LoadTracks(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to load stream: %w", err)
	}
	track, err := firstTrack(result)
	if err != nil {
		return err
	}

	// Register before starting so an immediate end event finds its callback.
	playback := &lavalinkPlayback{encoded: track.Encoded, onEnded: onEnded}
	previous := c.swapPlayback(guildID, playback)
	if previous != nil {
		previous.onEnded(nil)
	}

	// Use WithEncodedTrack to avoid userData:null issue
	if err := c.link.Player(guildID).Update(ctx, lavalink.WithEncodedTrack(track.Encoded)); err != nil {
		c.takePlayback(guildID, track.Encoded)
		return fmt.Errorf("failed to play stream: %w", err)
	}

	return nil
}

// Stop stops the current stream and reports nil to the stream's owner.
func (c *LavalinkAdapter) Stop(ctx context.Context, handle domain.VoiceHandle) error {
	guildID := handle.GuildID()

	playback := c.swapPlayback(guildID, nil)
	if playback == nil {
		return nil
	}
	defer playback.onEnded(nil)

	if err := c.link.Player(guildID).Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	return nil
}

// IsActive returns true while a stream is loaded on the guild's player.
func (c *LavalinkAdapter) IsActive(handle domain.VoiceHandle) bool {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	_, ok := c.playbacks[handle.GuildID()]
	return ok
}

// Close closes all node connections.
func (c *LavalinkAdapter) Close() {
	c.link.Close()
}

// firstTrack picks the playable track out of a load result.
func firstTrack(result *lavalink.LoadResult) (lavalink.Track, error) {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return data, nil
	case lavalink.Playlist:
		if len(data.Tracks) > 0 {
			return data.Tracks[0], nil
		}
	case lavalink.Search:
		if len(data) > 0 {
			return data[0], nil
		}
	case lavalink.Exception:
		return lavalink.Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, data.Message)
	}
	return lavalink.Track{}, ErrTrackNotFound
}

func (c *LavalinkAdapter) swapPlayback(
	guildID snowflake.ID,
	playback *lavalinkPlayback,
) *lavalinkPlayback {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	previous := c.playbacks[guildID]
	if playback == nil {
		delete(c.playbacks, guildID)
	} else {
		c.playbacks[guildID] = playback
	}
	return previous
}

// takePlayback removes and returns the guild's playback if it is still playing encoded.
func (c *LavalinkAdapter) takePlayback(guildID snowflake.ID, encoded string) *lavalinkPlayback {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	playback := c.playbacks[guildID]
	if playback == nil || playback.encoded != encoded {
		return nil
	}
	delete(c.playbacks, guildID)
	return playback
}

// markStarted records that the guild's playback of encoded is now audible.
func (c *LavalinkAdapter) markStarted(guildID snowflake.ID, encoded string) {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	if playback := c.playbacks[guildID]; playback != nil && playback.encoded == encoded {
		playback.started = true
	}
}

// finishPlayback removes and returns the playback an end event refers to.
// The same stream URL encodes to the same track, so an end event is matched to the
// current playback only once that playback has started, unless it never could.
func (c *LavalinkAdapter) finishPlayback(
	guildID snowflake.ID,
	encoded string,
	reason lavalink.TrackEndReason,
) *lavalinkPlayback {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	playback := c.playbacks[guildID]
	if playback == nil || playback.encoded != encoded {
		return nil
	}
	if !playback.started && reason != lavalink.TrackEndReasonLoadFailed {
		return nil
	}
	delete(c.playbacks, guildID)
	return playback
}

func (c *LavalinkAdapter) recordFailure(guildID snowflake.ID, encoded string, err error) {
	c.playbackMu.Lock()
	defer c.playbackMu.Unlock()

	if playback := c.playbacks[guildID]; playback != nil && playback.encoded == encoded {
		playback.failure = err
	}
}

func (c *LavalinkAdapter) setConnected(guildID, channelID snowflake.ID) {
	c.connectedMu.Lock()
	defer c.connectedMu.Unlock()

	if channelID == 0 {
		delete(c.connected, guildID)
		return
	}
	c.connected[guildID] = channelID
}

func (c *LavalinkAdapter) connectedChannel(guildID snowflake.ID) snowflake.ID {
	c.connectedMu.RLock()
	defer c.connectedMu.RUnlock()

	return c.connected[guildID]
}

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	c.signalPending(guildID, false)
}

// OnVoiceStateUpdate handles Discord voice state updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	// Only handle updates for the bot itself
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	// Parse the channel ID - if empty, the bot is disconnecting
	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Handle disconnect immediately (no need to wait for VoiceServerUpdate)
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, event.SessionID)
		c.clearVoiceBuffer(guildID)
		c.setConnected(guildID, 0)
		return
	}

	// Follow moves of an established connection
	if c.connectedChannel(guildID) != 0 {
		c.setConnected(guildID, *channelID)
	}

	buffer := c.getOrCreateVoiceBuffer(guildID)

	if buffer.setVoiceState(channelID, event.SessionID) {
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	c.signalPending(guildID, true)
}

func (c *LavalinkAdapter) signalPending(guildID snowflake.ID, isVoiceState bool) {
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(isVoiceState)
	}
}

// getOrCreateVoiceBuffer returns the voice buffer for a guild, creating one if needed.
func (c *LavalinkAdapter) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

// clearVoiceBuffer removes the voice buffer for a guild.
func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

// forwardBufferedVoiceEvents sends the buffered voice events to Lavalink.
func (c *LavalinkAdapter) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
		"hasSessionID", sessionID != "",
	)

	// Forward to Lavalink in the correct order
	c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("stream started", "guild", player.GuildID(), "stream", event.Track.Info.Title)

	c.markStarted(player.GuildID(), event.Track.Encoded)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("stream ended", "guild", player.GuildID(), "reason", event.Reason)

	// Play already reported the end of the stream it replaced.
	if event.Reason == lavalink.TrackEndReasonReplaced {
		return
	}

	playback := c.finishPlayback(player.GuildID(), event.Track.Encoded, event.Reason)
	if playback == nil {
		return
	}
	playback.onEnded(endResult(playback, event.Reason))
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("stream exception", "guild", player.GuildID(), "error", event.Exception.Message)

	c.recordFailure(player.GuildID(), event.Track.Encoded, fmt.Errorf(
		"lavalink exception: %s", event.Exception.Message,
	))
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("stream stuck", "guild", player.GuildID(), "threshold", event.Threshold)

	c.recordFailure(player.GuildID(), event.Track.Encoded, ErrTrackStuck)

	// A stuck live stream never ends on its own.
	if err := player.Update(context.Background(), lavalink.WithNullTrack()); err != nil {
		slog.Warn("failed to stop stuck stream", "guild", player.GuildID(), "error", err)
	}
}

// endResult decides what an ended stream reports to its owner.
func endResult(playback *lavalinkPlayback, reason lavalink.TrackEndReason) error {
	if playback.failure != nil {
		return playback.failure
	}

	switch reason {
	case lavalink.TrackEndReasonLoadFailed:
		return ErrTrackNotFound
	case lavalink.TrackEndReasonCleanup:
		return ErrPlayerCleanup
	default:
		return nil
	}
}

// Ensure LavalinkAdapter implements port interfaces.
var (
	_ ports.AudioPlayer    = (*LavalinkAdapter)(nil)
	_ ports.VoiceConnector = (*LavalinkAdapter)(nil)
)
