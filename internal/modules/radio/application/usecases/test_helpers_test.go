package usecases

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

const (
	testGuildID   = snowflake.ID(1)
	testVoiceID   = snowflake.ID(10)
	testTextID    = snowflake.ID(20)
	testUserID    = snowflake.ID(7)
	testStreamURL = "http://s/stream"
)

type mockRepository struct {
	mu     sync.Mutex
	states map[snowflake.ID]*domain.GuildState
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		states: make(map[snowflake.ID]*domain.GuildState),
	}
}

func (m *mockRepository) Get(guildID snowflake.ID) *domain.GuildState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[guildID]
}

func (m *mockRepository) Upsert(
	guildID snowflake.ID,
	mutate func(*domain.GuildState),
) *domain.GuildState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[guildID]
	if !ok {
		state = domain.NewGuildState(guildID)
		m.states[guildID] = state
	}
	if mutate != nil {
		mutate(state)
	}
	return state
}

func (m *mockRepository) Delete(guildID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, guildID)
}

func (m *mockRepository) GuildIDs() []snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Collect(maps.Keys(m.states))
}

type mockHandle struct {
	mu        sync.Mutex
	guildID   snowflake.ID
	channelID snowflake.ID
	connected bool
}

func (h *mockHandle) GuildID() snowflake.ID { return h.guildID }

func (h *mockHandle) ChannelID() snowflake.ID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channelID
}

func (h *mockHandle) IsConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}

func (h *mockHandle) setConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = connected
}

type mockConnector struct {
	mu          sync.Mutex
	connectErr  map[snowflake.ID]error // keyed by guild
	moveErr     error
	connects    []snowflake.ID // channel IDs
	moves       []snowflake.ID
	disconnects int
	handles     []*mockHandle
}

func newMockConnector() *mockConnector {
	return &mockConnector{
		connectErr: make(map[snowflake.ID]error),
	}
}

func (m *mockConnector) Connect(
	_ context.Context,
	guildID, channelID snowflake.ID,
) (domain.VoiceHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.connectErr[guildID]; err != nil {
		return nil, err
	}
	m.connects = append(m.connects, channelID)
	handle := &mockHandle{guildID: guildID, channelID: channelID, connected: true}
	m.handles = append(m.handles, handle)
	return handle, nil
}

func (m *mockConnector) Move(
	_ context.Context,
	handle domain.VoiceHandle,
	channelID snowflake.ID,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.moveErr != nil {
		return m.moveErr
	}
	m.moves = append(m.moves, channelID)
	h := handle.(*mockHandle)
	h.mu.Lock()
	h.channelID = channelID
	h.mu.Unlock()
	return nil
}

func (m *mockConnector) Disconnect(_ context.Context, handle domain.VoiceHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	handle.(*mockHandle).setConnected(false)
	return nil
}

func (m *mockConnector) connectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connects)
}

// mockPlayer records plays and calls onEnded(nil) on Stop like the real players.
type mockPlayer struct {
	mu      sync.Mutex
	playErr error
	stopErr error
	plays   []string
	stops   int
	active  map[domain.VoiceHandle]bool
	onEnded map[domain.VoiceHandle]func(error)
}

func newMockPlayer() *mockPlayer {
	return &mockPlayer{
		active:  make(map[domain.VoiceHandle]bool),
		onEnded: make(map[domain.VoiceHandle]func(error)),
	}
}

func (m *mockPlayer) Play(
	_ context.Context,
	handle domain.VoiceHandle,
	url string,
	onEnded func(error),
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.plays = append(m.plays, url)
	m.active[handle] = true
	m.onEnded[handle] = onEnded
	return nil
}

func (m *mockPlayer) Stop(_ context.Context, handle domain.VoiceHandle) error {
	m.mu.Lock()
	if m.stopErr != nil {
		m.mu.Unlock()
		return m.stopErr
	}
	m.stops++
	onEnded := m.onEnded[handle]
	delete(m.active, handle)
	delete(m.onEnded, handle)
	m.mu.Unlock()

	if onEnded != nil {
		onEnded(nil)
	}
	return nil
}

func (m *mockPlayer) IsActive(handle domain.VoiceHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[handle]
}

// fail simulates the stream dying: the player goes inactive and reports err.
func (m *mockPlayer) fail(handle domain.VoiceHandle, err error) {
	m.mu.Lock()
	onEnded := m.onEnded[handle]
	delete(m.active, handle)
	delete(m.onEnded, handle)
	m.mu.Unlock()

	if onEnded != nil {
		onEnded(err)
	}
}

func (m *mockPlayer) playCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plays)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []ports.PlaybackEndedEvent
}

func (m *mockPublisher) PublishPlaybackEnded(event ports.PlaybackEndedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// take returns and clears the published events.
func (m *mockPublisher) take() []ports.PlaybackEndedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events
	m.events = nil
	return events
}

type scheduledCall struct {
	delay time.Duration
	fn    func()
}

type mockScheduler struct {
	mu    sync.Mutex
	calls []scheduledCall
}

func (m *mockScheduler) Schedule(delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, scheduledCall{delay: delay, fn: fn})
}

func (m *mockScheduler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// fireAll runs every pending call and clears them.
func (m *mockScheduler) fireAll() {
	m.mu.Lock()
	calls := m.calls
	m.calls = nil
	m.mu.Unlock()

	for _, call := range calls {
		call.fn()
	}
}

// mockSurface tracks which status messages are currently live.
type mockSurface struct {
	mu      sync.Mutex
	nextID  snowflake.ID
	live    map[snowflake.ID]*ports.StatusInfo
	sent    []*ports.StatusInfo
	edited  []*ports.StatusInfo
	deleted []snowflake.ID
	sendErr error
	editErr error
}

func newMockSurface() *mockSurface {
	return &mockSurface{
		nextID: snowflake.ID(100),
		live:   make(map[snowflake.ID]*ports.StatusInfo),
	}
}

func (m *mockSurface) Send(
	_ context.Context,
	_ snowflake.ID,
	info *ports.StatusInfo,
) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.live[m.nextID] = info
	m.sent = append(m.sent, info)
	return m.nextID, nil
}

func (m *mockSurface) Edit(
	_ context.Context,
	_, messageID snowflake.ID,
	info *ports.StatusInfo,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	if _, ok := m.live[messageID]; !ok {
		return ports.ErrSurfaceNotFound
	}
	m.live[messageID] = info
	m.edited = append(m.edited, info)
	return nil
}

func (m *mockSurface) Delete(_ context.Context, _, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live[messageID]; !ok {
		return ports.ErrSurfaceNotFound
	}
	delete(m.live, messageID)
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockSurface) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// deleteExternally removes a message as if a moderator deleted it.
func (m *mockSurface) deleteExternally(messageID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, messageID)
}

type mockUserInfoProvider struct {
	info *ports.UserInfo
	err  error
}

func (m *mockUserInfoProvider) GetUserInfo(_, _ snowflake.ID) (*ports.UserInfo, error) {
	return m.info, m.err
}

type mockVoiceStateProvider struct {
	channels map[snowflake.ID]snowflake.ID // userID -> channelID
	err      error
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(
	_, userID snowflake.ID,
) (*snowflake.ID, error) {
	if m.err != nil {
		return nil, m.err
	}
	channelID, ok := m.channels[userID]
	if !ok {
		return nil, nil
	}
	return &channelID, nil
}

type mockStateStore struct {
	mu      sync.Mutex
	records map[snowflake.ID]domain.PersistedRecord
	saves   int
	loadErr error
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{
		records: make(map[snowflake.ID]domain.PersistedRecord),
	}
}

func (m *mockStateStore) Load(_ context.Context) (map[snowflake.ID]domain.PersistedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return maps.Clone(m.records), nil
}

func (m *mockStateStore) Save(
	_ context.Context,
	records map[snowflake.ID]domain.PersistedRecord,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = maps.Clone(records)
	m.saves++
	return nil
}

func (m *mockStateStore) record(guildID snowflake.ID) (domain.PersistedRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[guildID]
	return record, ok
}

type mockMetrics struct {
	mu       sync.Mutex
	started  int
	failures map[string]int
	retries  int
	gaveUp   int
	metadata int
	active   int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{failures: make(map[string]int)}
}

func (m *mockMetrics) PlaybackStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *mockMetrics) PlaybackFailed(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

func (m *mockMetrics) RetryScheduled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *mockMetrics) GaveUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gaveUp++
}

func (m *mockMetrics) MetadataUpdated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata++
}

func (m *mockMetrics) SetActiveGuilds(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = n
}

type mockMetadataSource struct {
	mu     sync.Mutex
	titles map[string]string
	err    error
	calls  int
	hook   func() // runs during FetchTitle, before returning
}

func (m *mockMetadataSource) FetchTitle(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	m.calls++
	hook := m.hook
	title, err := m.titles[url], m.err
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return title, err
}

// testEnv wires a PlaybackService to mocks.
type testEnv struct {
	repo       *mockRepository
	connector  *mockConnector
	player     *mockPlayer
	voiceState *mockVoiceStateProvider
	surface    *mockSurface
	publisher  *mockPublisher
	scheduler  *mockScheduler
	store      *mockStateStore
	metrics    *mockMetrics
	service    *PlaybackService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:      newMockRepository(),
		connector: newMockConnector(),
		player:    newMockPlayer(),
		voiceState: &mockVoiceStateProvider{
			channels: map[snowflake.ID]snowflake.ID{testUserID: testVoiceID},
		},
		surface:   newMockSurface(),
		publisher: &mockPublisher{},
		scheduler: &mockScheduler{},
		store:     newMockStateStore(),
		metrics:   newMockMetrics(),
	}

	env.service = NewPlaybackService(
		PlaybackDependencies{
			Repo:       env.repo,
			Connector:  env.connector,
			Player:     env.player,
			VoiceState: env.voiceState,
			Display: NewStatusDisplayService(
				env.surface,
				&mockUserInfoProvider{info: &ports.UserInfo{DisplayName: "requester"}},
			),
			Publisher: env.publisher,
			Scheduler: env.scheduler,
			Store:     env.store,
			Metrics:   env.metrics,
		},
		PlaybackConfig{
			MaxRetries:     3,
			RetryDelay:     5 * time.Second,
			ConnectTimeout: time.Second,
			Stations:       domain.Stations{"Lofi": "https://lofi.example.com/stream"},
		},
	)

	return env
}

func (e *testEnv) play(ctx context.Context) (*PlayOutput, error) {
	return e.service.RequestPlay(ctx, PlayInput{
		GuildID:        testGuildID,
		UserID:         testUserID,
		TextChannelID:  testTextID,
		VoiceChannelID: testVoiceID,
		Query:          testStreamURL,
	})
}

// deliver applies every published end report to the service, like the event handler does.
func (e *testEnv) deliver(ctx context.Context) {
	for _, event := range e.publisher.take() {
		e.service.HandlePlaybackEnded(ctx, event.GuildID, event.Session, event.Err)
	}
}

func (e *testEnv) state() *domain.GuildState {
	return e.repo.Get(testGuildID)
}

func (e *testEnv) handle() domain.VoiceHandle {
	return e.state().Connection()
}
