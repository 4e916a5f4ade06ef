package radio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/bot"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/events"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/usecases"
	"github.com/sglre6355/sgrradio/internal/modules/radio/infrastructure"
	"github.com/sglre6355/sgrradio/internal/modules/radio/presentation"
)

func init() {
	bot.Register(&RadioModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*RadioModule)(nil)
	_ bot.StartableModule    = (*RadioModule)(nil)
)

// RadioModule streams internet radio into voice channels.
type RadioModule struct {
	config *Config

	playback      *usecases.PlaybackService
	poller        *usecases.MetadataPoller
	handlers      *presentation.Handlers
	autocomplete  *presentation.AutocompleteHandler
	eventHandlers *presentation.EventHandlers

	// Backends; only one of lavalink and ffmpeg is set.
	lavalink  *infrastructure.LavalinkAdapter
	ffmpeg    *infrastructure.FFmpegPlayer
	sqlite    *infrastructure.SQLiteStateStore
	scheduler *infrastructure.TimerScheduler

	eventBus        *events.Bus
	playbackHandler *events.PlaybackEventHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *RadioModule) Name() string {
	return "radio"
}

// Commands returns the slash commands for this module.
func (m *RadioModule) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *RadioModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":  m.handlers.HandlePlay,
		"stop":  m.handlers.HandleStop,
		"join":  m.handlers.HandleJoin,
		"leave": m.handlers.HandleLeave,
		"now":   m.handlers.HandleNow,
		"list":  m.handlers.HandleList,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *RadioModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			m.handleInteractionCreate(s, i)
		},
		m.eventHandlers.HandleMessageReactionAdd,
		m.eventHandlers.HandleReady,
		m.eventHandlers.HandleResumed,
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *RadioModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid radio configuration: %w", err)
	}
	m.config = cfg
	return nil
}

// Init initializes the module. The session must already be open.
func (m *RadioModule) Init(deps bot.ModuleDependencies) error {
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	botID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		return fmt.Errorf("failed to parse bot ID: %w", err)
	}

	connector, player, err := m.initBackend(deps.Session)
	if err != nil {
		return err
	}

	store, err := m.initStore()
	if err != nil {
		return err
	}

	var metrics ports.PlaybackMetrics = ports.NopMetrics{}
	if deps.Metrics != nil {
		metrics = infrastructure.NewPrometheusMetrics(deps.Metrics)
	}

	m.eventBus = events.NewBus(events.DefaultEventBufferSize)
	m.scheduler = infrastructure.NewTimerScheduler()

	userInfo := infrastructure.NewDiscordUserInfoProvider(deps.Session)
	display := usecases.NewStatusDisplayService(
		infrastructure.NewNotifier(deps.Session),
		userInfo,
	)

	m.playback = usecases.NewPlaybackService(
		usecases.PlaybackDependencies{
			Repo:       infrastructure.NewMemoryRepository(),
			Connector:  connector,
			Player:     player,
			VoiceState: infrastructure.NewVoiceStateProvider(deps.Session),
			Display:    display,
			Publisher:  m.eventBus,
			Scheduler:  m.scheduler,
			Store:      store,
			Metrics:    metrics,
		},
		usecases.PlaybackConfig{
			MaxRetries:     m.config.MaxRetries,
			RetryDelay:     m.config.RetryDelay,
			ConnectTimeout: m.config.ConnectTimeout,
			Stations:       m.config.stations(),
		},
	)

	if m.config.MetadataEnabled {
		m.poller = usecases.NewMetadataPoller(
			m.playback,
			infrastructure.NewICYMetadataSource("sgrradio"),
			m.config.MetadataInterval,
			m.config.MetadataTimeout,
		)
	}

	m.playbackHandler = events.NewPlaybackEventHandler(m.playback.HandlePlaybackEnded, m.eventBus)
	m.playbackHandler.Start(m.ctx)

	m.handlers = presentation.NewHandlers(m.playback)
	m.autocomplete = presentation.NewAutocompleteHandler(
		usecases.NewAutocompleteService(m.config.stations()),
	)
	m.eventHandlers = presentation.NewEventHandlers(botID, m.playback, deps.Session, m.scheduler)

	slog.Info("initialized radio module",
		"backend", m.config.AudioBackend,
		"stations", len(m.config.Stations),
		"persistence", m.config.PersistenceEnabled,
		"metadata", m.config.MetadataEnabled,
	)

	return nil
}

func (m *RadioModule) initBackend(
	session *discordgo.Session,
) (ports.VoiceConnector, ports.AudioPlayer, error) {
	switch m.config.AudioBackend {
	case BackendLavalink:
		adapter, err := infrastructure.NewLavalinkAdapter(m.ctx, session, infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
			Secure:   m.config.LavalinkSecure,
		})
		if err != nil {
			return nil, nil, err
		}
		m.lavalink = adapter
		return adapter, adapter, nil
	default:
		m.ffmpeg = infrastructure.NewFFmpegPlayer(m.config.FFmpegPath)
		return infrastructure.NewDiscordVoiceConnector(session), m.ffmpeg, nil
	}
}

func (m *RadioModule) initStore() (ports.StateStore, error) {
	if !m.config.PersistenceEnabled {
		return nil, nil
	}

	path := m.config.statePath()
	if m.config.StateBackend == StateBackendSQLite {
		store, err := infrastructure.NewSQLiteStateStore(m.ctx, path)
		if err != nil {
			return nil, err
		}
		m.sqlite = store
		return store, nil
	}

	return infrastructure.NewJSONStateStore(path), nil
}

// Start restores persisted playback and starts the metadata poller.
func (m *RadioModule) Start() error {
	go func() {
		if err := m.playback.Restore(m.ctx); err != nil {
			slog.Error("failed to restore playback", "error", err)
		}
	}()

	if m.poller != nil {
		go m.poller.Run(m.ctx)
	}

	return nil
}

// Shutdown cleans up module resources.
// Persisted intent is left untouched so playback resumes after a restart.
func (m *RadioModule) Shutdown() error {
	// Cancel context first to signal background work to stop
	if m.cancel != nil {
		m.cancel()
	}

	if m.scheduler != nil {
		m.scheduler.Stop()
	}

	if m.playbackHandler != nil {
		m.playbackHandler.Stop()
	}

	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.ffmpeg != nil {
		m.ffmpeg.Shutdown(context.Background())
	}

	if m.lavalink != nil {
		m.lavalink.Close()
	}

	if m.sqlite != nil {
		if err := m.sqlite.Close(); err != nil {
			return fmt.Errorf("failed to close state store: %w", err)
		}
	}

	return nil
}

// Event handlers.

func (m *RadioModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalink != nil {
		m.lavalink.OnVoiceServerUpdate(event)
	}
}

func (m *RadioModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalink != nil {
		m.lavalink.OnVoiceStateUpdate(event)
	}
	m.eventHandlers.HandleVoiceStateUpdate(s, event)
}

func (m *RadioModule) handleInteractionCreate(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	if i.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return
	}

	if i.ApplicationCommandData().Name == "play" {
		m.autocomplete.HandlePlay(s, i)
	}
}
