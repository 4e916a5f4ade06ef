package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// Defaults for PlaybackConfig.
const (
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultConnectTimeout = 60 * time.Second
)

// disconnectReportGrace is how long past the connect timeout the gateway's report
// of a disconnect issued by the bot is still attributed to it.
const disconnectReportGrace = 15 * time.Second

// PlaybackConfig holds the retry policy and the predefined stations.
type PlaybackConfig struct {
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	Stations       domain.Stations
}

// PlaybackDependencies holds the collaborators of PlaybackService.
// Store and Metrics are optional.
type PlaybackDependencies struct {
	Repo       domain.GuildStateRepository
	Connector  ports.VoiceConnector
	Player     ports.AudioPlayer
	VoiceState ports.VoiceStateProvider
	Display    *StatusDisplayService
	Publisher  ports.EventPublisher
	Scheduler  ports.Scheduler
	Store      ports.StateStore
	Metrics    ports.PlaybackMetrics
}

// PlayInput contains the input for the RequestPlay use case.
type PlayInput struct {
	GuildID        snowflake.ID
	UserID         snowflake.ID
	TextChannelID  snowflake.ID
	VoiceChannelID snowflake.ID // Optional: 0 means the user's current channel
	Query          string       // Station name or stream URL
}

// PlayOutput contains the result of the RequestPlay use case.
type PlayOutput struct {
	StreamName     string
	VoiceChannelID snowflake.ID
}

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	GuildID        snowflake.ID
	UserID         snowflake.ID
	VoiceChannelID snowflake.ID // Optional: 0 means the user's current channel
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	VoiceChannelID snowflake.ID
}

// PlaybackService owns every playback transition of every guild.
// Operations on one guild are serialised by a per-guild lock.
type PlaybackService struct {
	repo       domain.GuildStateRepository
	connector  ports.VoiceConnector
	player     ports.AudioPlayer
	voiceState ports.VoiceStateProvider
	display    *StatusDisplayService
	publisher  ports.EventPublisher
	scheduler  ports.Scheduler
	persister  *statePersister
	metrics    ports.PlaybackMetrics
	config     PlaybackConfig

	locks *guildLocks
	now   func() time.Time

	activeMu sync.Mutex
	active   map[snowflake.ID]struct{} // Guilds in PhasePlaying
}

// NewPlaybackService creates a new PlaybackService.
func NewPlaybackService(deps PlaybackDependencies, cfg PlaybackConfig) *PlaybackService {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &PlaybackService{
		repo:       deps.Repo,
		connector:  deps.Connector,
		player:     deps.Player,
		voiceState: deps.VoiceState,
		display:    deps.Display,
		publisher:  deps.Publisher,
		scheduler:  deps.Scheduler,
		persister:  newStatePersister(deps.Store),
		metrics:    metrics,
		config:     cfg,
		locks:      newGuildLocks(),
		now:        time.Now,
		active:     make(map[snowflake.ID]struct{}),
	}
}

// RequestPlay starts streaming the queried station or URL for a user.
// Failures are returned to the caller and leave playback stopped.
func (p *PlaybackService) RequestPlay(ctx context.Context, input PlayInput) (*PlayOutput, error) {
	stream, err := domain.ResolveStream(input.Query, p.config.Stations)
	if err != nil {
		return nil, err
	}

	voiceChannelID := input.VoiceChannelID
	if voiceChannelID == 0 {
		userChannel, err := p.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
		if err != nil {
			return nil, err
		}
		if userChannel == nil {
			return nil, ErrUserNotInVoice
		}
		voiceChannelID = *userChannel
	}

	unlock := p.locks.lock(input.GuildID)
	defer unlock()

	state := p.repo.Upsert(input.GuildID, func(s *domain.GuildState) {
		s.SetDesiredPlaying(true)
		s.SetStream(stream)
		s.SetRequesterID(input.UserID)
		s.SetVoiceChannelID(voiceChannelID)
		s.SetTextChannelID(input.TextChannelID)
		s.ResetRetryCount()
		s.SetRehydrating(false)
	})

	slog.Info("requested playback",
		"guild", input.GuildID,
		"user", input.UserID,
		"stream", stream.Name,
		"voice_channel", voiceChannelID,
	)

	if err := p.connectAndPlay(ctx, state); err != nil {
		p.abort(ctx, state, err)
		return nil, err
	}

	p.display.Sync(ctx, state, true)
	p.persister.persist(ctx, state)

	return &PlayOutput{
		StreamName:     stream.Name,
		VoiceChannelID: voiceChannelID,
	}, nil
}

// Join connects to or moves to the user's voice channel without changing the
// playback intent. A running stream follows the bot to the new channel.
func (p *PlaybackService) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	voiceChannelID := input.VoiceChannelID
	if voiceChannelID == 0 {
		userChannel, err := p.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
		if err != nil {
			return nil, err
		}
		if userChannel == nil {
			return nil, ErrUserNotInVoice
		}
		voiceChannelID = *userChannel
	}

	unlock := p.locks.lock(input.GuildID)
	defer unlock()

	var previousChannelID snowflake.ID
	state := p.repo.Upsert(input.GuildID, func(s *domain.GuildState) {
		previousChannelID = s.VoiceChannelID()
		s.SetVoiceChannelID(voiceChannelID)
	})

	slog.Info("requested join",
		"guild", input.GuildID,
		"user", input.UserID,
		"voice_channel", voiceChannelID,
	)

	if err := p.ensureConnection(ctx, state); err != nil {
		state.SetVoiceChannelID(previousChannelID)
		return nil, err
	}

	// A reconnect replaced the handle the stream was running on.
	if state.DesiredPlaying() && !p.isStreaming(state) {
		if err := p.startStream(ctx, state); err != nil {
			p.abort(ctx, state, err)
			return nil, err
		}
		p.display.Sync(ctx, state, true)
	}
	if state.DesiredPlaying() {
		p.persister.persist(ctx, state)
	}

	return &JoinOutput{VoiceChannelID: voiceChannelID}, nil
}

// RequestStop stops playback. The player's end report finishes the cleanup when
// a stream is running; otherwise the status message is removed directly.
func (p *PlaybackService) RequestStop(ctx context.Context, guildID snowflake.ID) error {
	unlock := p.locks.lock(guildID)
	defer unlock()

	return p.stopLocked(ctx, guildID)
}

// StopFromSurface stops playback when the stop reaction is added to the live status message.
func (p *PlaybackService) StopFromSurface(
	ctx context.Context,
	guildID, messageID snowflake.ID,
) error {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil || !state.IsStatusMessage(messageID) {
		return ErrNotStatusSurface
	}

	return p.stopLocked(ctx, guildID)
}

func (p *PlaybackService) stopLocked(ctx context.Context, guildID snowflake.ID) error {
	state := p.repo.Get(guildID)
	if state == nil || !state.DesiredPlaying() {
		return ErrNotPlaying
	}

	state.SetDesiredPlaying(false)
	state.ResetRetryCount()
	p.setPhase(state, domain.PhaseStopped)
	p.persister.persist(ctx, state)

	slog.Info("stopped playback", "guild", guildID)

	if handle := state.Connection(); handle != nil && p.player.IsActive(handle) {
		err := p.player.Stop(ctx, handle)
		if err == nil {
			return nil
		}
		slog.Warn("failed to stop player", "guild", guildID, "error", err)
	}

	p.display.Remove(ctx, state)
	return nil
}

// Leave stops playback and disconnects from the voice channel.
func (p *PlaybackService) Leave(ctx context.Context, guildID snowflake.ID) error {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil || state.Connection() == nil {
		return ErrNotConnected
	}

	handle := state.Connection()

	state.SetDesiredPlaying(false)
	state.ResetRetryCount()
	// End reports from the stream being torn down are no longer relevant.
	state.NextSession()

	if p.player.IsActive(handle) {
		if err := p.player.Stop(ctx, handle); err != nil {
			slog.Warn("failed to stop player", "guild", guildID, "error", err)
		}
	}
	if err := p.disconnect(ctx, state, handle); err != nil {
		slog.Warn("failed to disconnect from voice channel", "guild", guildID, "error", err)
	}

	state.SetConnection(nil)
	p.setPhase(state, domain.PhaseIdle)
	p.display.Remove(ctx, state)
	p.persister.persist(ctx, state)

	slog.Info("left voice channel", "guild", guildID)

	return nil
}

// ShowStatus re-sends the status message, optionally in another text channel.
func (p *PlaybackService) ShowStatus(
	ctx context.Context,
	guildID, textChannelID snowflake.ID,
) error {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil || !p.isStreaming(state) {
		return ErrNotPlaying
	}

	if textChannelID != 0 && textChannelID != state.TextChannelID() {
		state.SetTextChannelID(textChannelID)
		p.persister.persist(ctx, state)
	}

	p.display.Sync(ctx, state, true)
	return nil
}

// ListStations returns the predefined stations ordered by name.
func (p *PlaybackService) ListStations() []Station {
	return p.config.Stations.Sorted()
}

// HandlePlaybackEnded applies an end report from the player.
// Reports from an earlier play invocation than the current one are ignored.
func (p *PlaybackService) HandlePlaybackEnded(
	ctx context.Context,
	guildID snowflake.ID,
	session uint64,
	cause error,
) {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil {
		return
	}
	if session != state.Session() {
		slog.Debug("ignoring end report from superseded playback",
			"guild", guildID,
			"session", session,
			"current_session", state.Session(),
		)
		return
	}

	p.display.Remove(ctx, state)

	switch {
	case cause != nil && state.DesiredPlaying():
		p.metrics.PlaybackFailed(ports.FailureStream)
		attempt := state.IncrementRetryCount()

		if attempt <= p.config.MaxRetries {
			p.setPhase(state, domain.PhaseFailed)
			slog.Warn("stream failed, scheduling reconnect",
				"guild", guildID,
				"attempt", attempt,
				"max_retries", p.config.MaxRetries,
				"delay", p.config.RetryDelay,
				"error", cause,
			)
			p.scheduleReconnect(ctx, guildID)
			return
		}

		state.SetDesiredPlaying(false)
		p.setPhase(state, domain.PhaseGivenUp)
		p.metrics.GaveUp()
		p.persister.persist(ctx, state)
		slog.Error("stream failed too many times, giving up",
			"guild", guildID,
			"stream", state.Stream().Name,
			"retries", state.RetryCount()-1,
			"error", cause,
		)

	case cause != nil:
		slog.Debug("stream ended with error after stop was requested",
			"guild", guildID,
			"error", cause,
		)
		state.ResetRetryCount()
		p.setPhase(state, domain.PhaseStopped)
		p.persister.persist(ctx, state)

	default:
		slog.Info("stream ended", "guild", guildID)
		state.SetDesiredPlaying(false)
		state.ResetRetryCount()
		p.setPhase(state, domain.PhaseStopped)
		p.persister.persist(ctx, state)
	}
}

// ReconnectAttempt restarts playback after a failure. It does nothing when
// playback is no longer wanted or is already running again.
func (p *PlaybackService) ReconnectAttempt(ctx context.Context, guildID snowflake.ID) {
	unlock := p.locks.lock(guildID)
	defer unlock()

	p.resumeLocked(ctx, guildID, "reconnect")
}

// HandleConnectionLost reacts to the bot being disconnected from voice by
// something other than Leave.
func (p *PlaybackService) HandleConnectionLost(ctx context.Context, guildID snowflake.ID) {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil {
		return
	}
	p.connectionLostLocked(ctx, state)
}

func (p *PlaybackService) connectionLostLocked(ctx context.Context, state *domain.GuildState) {
	guildID := state.GuildID()

	if handle := state.Connection(); handle != nil {
		// The dead connection's stream will report an end that must not count as a failure.
		state.NextSession()
		if p.player.IsActive(handle) {
			if err := p.player.Stop(ctx, handle); err != nil {
				slog.Debug("failed to stop player on lost connection", "guild", guildID, "error", err)
			}
		}
		if err := p.connector.Disconnect(ctx, handle); err != nil {
			slog.Debug("failed to release lost connection", "guild", guildID, "error", err)
		}
		state.SetConnection(nil)
	}

	if state.DesiredPlaying() {
		state.ResetRetryCount()
		p.setPhase(state, domain.PhaseFailed)
		slog.Warn("lost voice connection, scheduling reconnect",
			"guild", guildID,
			"delay", p.config.RetryDelay,
		)
		p.scheduleReconnect(ctx, guildID)
		return
	}

	p.setPhase(state, domain.PhaseIdle)
	p.display.Remove(ctx, state)
	p.persister.persist(ctx, state)
}

// HandleBotVoiceStateChange tracks the bot's own voice channel. A zero channel
// means the bot was disconnected.
func (p *PlaybackService) HandleBotVoiceStateChange(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil {
		return
	}

	if channelID == 0 {
		switch {
		case state.ConsumeExpectedDisconnect(p.now()):
			slog.Debug("ignoring voice disconnect issued by the bot", "guild", guildID)
		case state.Connection() == nil:
			slog.Debug("ignoring voice disconnect without a connection", "guild", guildID)
		default:
			p.connectionLostLocked(ctx, state)
		}
		return
	}

	if state.Connection() == nil || state.VoiceChannelID() == channelID {
		return
	}

	slog.Info("bot moved to another voice channel",
		"guild", guildID,
		"from", state.VoiceChannelID(),
		"to", channelID,
	)
	state.SetVoiceChannelID(channelID)
	p.persister.persist(ctx, state)
}

// Restore resumes playback for every stored record, one goroutine per guild,
// and waits until each guild has either resumed or given up.
func (p *PlaybackService) Restore(ctx context.Context) error {
	records, err := p.persister.load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted state: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	slog.Info("restoring playback", "guilds", len(records))

	var wg sync.WaitGroup
	for guildID, record := range records {
		if !record.IsComplete() {
			slog.Warn("dropping incomplete persisted record", "guild", guildID)
			p.persister.forget(ctx, guildID)
			continue
		}

		unlock := p.locks.lock(guildID)
		p.repo.Upsert(guildID, func(s *domain.GuildState) {
			// A play command that arrived first wins over the stored intent.
			if s.DesiredPlaying() {
				return
			}
			s.ApplyRecord(record)
			s.SetRehydrating(true)
		})
		unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.rehydrate(ctx, guildID)
		}()
	}
	wg.Wait()

	return nil
}

func (p *PlaybackService) rehydrate(ctx context.Context, guildID snowflake.ID) {
	unlock := p.locks.lock(guildID)
	defer unlock()

	p.resumeLocked(ctx, guildID, "restore")
}

// Reconcile schedules a reconnect for every guild that wants playback but lost
// its voice connection, typically after the gateway session was re-established.
func (p *PlaybackService) Reconcile(ctx context.Context) {
	for _, guildID := range p.repo.GuildIDs() {
		unlock := p.locks.lock(guildID)

		state := p.repo.Get(guildID)
		if state != nil &&
			state.DesiredPlaying() &&
			!state.HasLiveConnection() &&
			!state.IsRehydrating() {
			state.ResetRetryCount()
			slog.Info("reconciling playback after gateway reconnect", "guild", guildID)
			p.scheduleReconnect(ctx, guildID)
		}

		unlock()
	}
}

// MetadataTarget returns the stream URL of a guild that is currently streaming.
func (p *PlaybackService) MetadataTarget(guildID snowflake.ID) (string, bool) {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil || !p.isStreaming(state) {
		return "", false
	}
	return state.Stream().URL, true
}

// ApplyMetadata records a freshly fetched stream title and updates the status
// message in place. Titles fetched for a stream that is no longer current, or
// that stopped streaming meanwhile, are dropped.
func (p *PlaybackService) ApplyMetadata(
	ctx context.Context,
	guildID snowflake.ID,
	streamURL, title string,
) bool {
	unlock := p.locks.lock(guildID)
	defer unlock()

	state := p.repo.Get(guildID)
	if state == nil || !p.isStreaming(state) || state.Stream().URL != streamURL {
		return false
	}
	if state.CurrentMetadata() == title {
		return false
	}

	slog.Debug("stream title changed", "guild", guildID, "title", title)

	state.SetCurrentMetadata(title)
	p.metrics.MetadataUpdated()
	p.display.Sync(ctx, state, false)
	return true
}

// GuildIDs returns a snapshot of the guilds known to the service.
func (p *PlaybackService) GuildIDs() []snowflake.ID {
	return p.repo.GuildIDs()
}

// resumeLocked re-runs connect-and-play for a guild that should be playing.
// Any failure stops playback for good; the next attempt needs a new play request.
func (p *PlaybackService) resumeLocked(ctx context.Context, guildID snowflake.ID, trigger string) {
	state := p.repo.Get(guildID)
	if state == nil {
		return
	}
	defer state.SetRehydrating(false)

	if !state.DesiredPlaying() {
		slog.Debug("playback no longer wanted, skipping", "guild", guildID, "trigger", trigger)
		return
	}
	if p.isStreaming(state) {
		slog.Debug("playback already running, skipping", "guild", guildID, "trigger", trigger)
		return
	}
	if !state.IsPlayable() {
		slog.Warn("missing stream or voice channel, giving up", "guild", guildID, "trigger", trigger)
		state.SetDesiredPlaying(false)
		p.setPhase(state, domain.PhaseStopped)
		p.persister.persist(ctx, state)
		return
	}

	slog.Info("resuming playback",
		"guild", guildID,
		"trigger", trigger,
		"stream", state.Stream().Name,
		"attempt", state.RetryCount(),
	)

	if err := p.connectAndPlay(ctx, state); err != nil {
		slog.Error("failed to resume playback",
			"guild", guildID,
			"trigger", trigger,
			"error", err,
		)
		p.abort(ctx, state, err)
		return
	}

	p.display.Sync(ctx, state, true)
	p.persister.persist(ctx, state)
}

// connectAndPlay joins or moves to the state's voice channel and starts the stream.
func (p *PlaybackService) connectAndPlay(ctx context.Context, state *domain.GuildState) error {
	p.setPhase(state, domain.PhaseConnecting)

	if err := p.ensureConnection(ctx, state); err != nil {
		return err
	}

	return p.startStream(ctx, state)
}

func (p *PlaybackService) ensureConnection(ctx context.Context, state *domain.GuildState) error {
	handle := state.Connection()
	if handle != nil && !handle.IsConnected() {
		if err := p.disconnect(ctx, state, handle); err != nil {
			slog.Debug("failed to release stale connection", "guild", state.GuildID(), "error", err)
		}
		state.SetConnection(nil)
		handle = nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	if handle == nil {
		newHandle, err := p.connector.Connect(connectCtx, state.GuildID(), state.VoiceChannelID())
		if err != nil {
			return connectError(err)
		}
		state.SetConnection(newHandle)
		return nil
	}

	if handle.ChannelID() != state.VoiceChannelID() {
		if err := p.connector.Move(connectCtx, handle, state.VoiceChannelID()); err != nil {
			return connectError(err)
		}
	}

	return nil
}

// disconnect leaves voice and marks the gateway's upcoming report of it as expected.
// The report may arrive after a new connection was made and must not tear that one down.
func (p *PlaybackService) disconnect(
	ctx context.Context,
	state *domain.GuildState,
	handle domain.VoiceHandle,
) error {
	state.ExpectDisconnect(p.now().Add(p.config.ConnectTimeout + disconnectReportGrace))
	return p.connector.Disconnect(ctx, handle)
}

func connectError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnectFailed, err)
}

func (p *PlaybackService) startStream(ctx context.Context, state *domain.GuildState) error {
	handle := state.Connection()
	guildID := state.GuildID()

	// Invalidate the running stream first so its end report is ignored.
	session := state.NextSession()
	if p.player.IsActive(handle) {
		if err := p.player.Stop(ctx, handle); err != nil {
			slog.Debug("failed to stop previous stream", "guild", guildID, "error", err)
		}
	}

	onEnded := func(err error) {
		p.publisher.PublishPlaybackEnded(ports.PlaybackEndedEvent{
			GuildID: guildID,
			Session: session,
			Err:     err,
		})
	}

	if err := p.player.Play(ctx, handle, state.Stream().URL, onEnded); err != nil {
		return fmt.Errorf("%w: %w", ErrPlayFailed, err)
	}

	state.SetCurrentMetadata("")
	state.SetStartedAt(p.now())
	p.setPhase(state, domain.PhasePlaying)
	p.metrics.PlaybackStarted()

	slog.Info("started stream",
		"guild", guildID,
		"stream", state.Stream().Name,
		"voice_channel", state.VoiceChannelID(),
		"session", session,
	)

	return nil
}

// abort turns a failed play or resume into a stopped guild.
func (p *PlaybackService) abort(ctx context.Context, state *domain.GuildState, cause error) {
	reason := ports.FailurePlay
	if errors.Is(cause, ErrConnectTimeout) || errors.Is(cause, ErrConnectFailed) {
		reason = ports.FailureConnect
	}
	p.metrics.PlaybackFailed(reason)

	state.SetDesiredPlaying(false)
	state.ResetRetryCount()
	p.setPhase(state, domain.PhaseStopped)
	p.display.Remove(ctx, state)
	p.persister.persist(ctx, state)
}

// isStreaming returns true if the guild wants playback and the player is running
// on a live connection.
func (p *PlaybackService) isStreaming(state *domain.GuildState) bool {
	return state.DesiredPlaying() &&
		state.Phase() == domain.PhasePlaying &&
		state.HasLiveConnection() &&
		p.player.IsActive(state.Connection())
}

func (p *PlaybackService) scheduleReconnect(ctx context.Context, guildID snowflake.ID) {
	p.metrics.RetryScheduled()
	ctx = context.WithoutCancel(ctx)
	p.scheduler.Schedule(p.config.RetryDelay, func() {
		p.ReconnectAttempt(ctx, guildID)
	})
}

func (p *PlaybackService) setPhase(state *domain.GuildState, phase domain.Phase) {
	state.SetPhase(phase)

	p.activeMu.Lock()
	defer p.activeMu.Unlock()

	if phase == domain.PhasePlaying {
		p.active[state.GuildID()] = struct{}{}
	} else {
		delete(p.active, state.GuildID())
	}
	p.metrics.SetActiveGuilds(len(p.active))
}
