package presentation

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/usecases"
)

const (
	testGuildID   = "100"
	testChannelID = "200"
	testUserID    = "300"
	testBotID     = "999"
)

// mockPlayback is a test double for Playback.
type mockPlayback struct {
	playInput  *usecases.PlayInput
	playOutput *usecases.PlayOutput
	playErr    error

	joinInput  *usecases.JoinInput
	joinOutput *usecases.JoinOutput
	joinErr    error

	stopped  []snowflake.ID
	stopErr  error
	left     []snowflake.ID
	leaveErr error
	shown    []snowflake.ID
	showErr  error
	stations []usecases.Station
}

func (m *mockPlayback) RequestPlay(
	_ context.Context,
	input usecases.PlayInput,
) (*usecases.PlayOutput, error) {
	m.playInput = &input
	if m.playErr != nil {
		return nil, m.playErr
	}
	return m.playOutput, nil
}

func (m *mockPlayback) Join(
	_ context.Context,
	input usecases.JoinInput,
) (*usecases.JoinOutput, error) {
	m.joinInput = &input
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	return m.joinOutput, nil
}

func (m *mockPlayback) RequestStop(_ context.Context, guildID snowflake.ID) error {
	m.stopped = append(m.stopped, guildID)
	return m.stopErr
}

func (m *mockPlayback) Leave(_ context.Context, guildID snowflake.ID) error {
	m.left = append(m.left, guildID)
	return m.leaveErr
}

func (m *mockPlayback) ShowStatus(_ context.Context, _, textChannelID snowflake.ID) error {
	m.shown = append(m.shown, textChannelID)
	return m.showErr
}

func (m *mockPlayback) ListStations() []usecases.Station {
	return m.stations
}

// mockSupervisor is a test double for Supervisor.
type mockSupervisor struct {
	mu            sync.Mutex
	voiceChanges  []snowflake.ID // channel IDs in call order
	stopMessages  []snowflake.ID
	stopErr       error
	reconcileRuns int
}

func (m *mockSupervisor) HandleBotVoiceStateChange(_ context.Context, _, channelID snowflake.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voiceChanges = append(m.voiceChanges, channelID)
}

func (m *mockSupervisor) StopFromSurface(_ context.Context, _, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopMessages = append(m.stopMessages, messageID)
	return m.stopErr
}

func (m *mockSupervisor) Reconcile(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconcileRuns++
}

// mockMessageClient is a test double for MessageClient.
type mockMessageClient struct {
	mu      sync.Mutex
	removed []string // "channel/message/emoji/user"
	sent    []*discordgo.MessageSend
	deleted []string // "channel/message"
	sendErr error
}

func (m *mockMessageClient) MessageReactionRemove(
	channelID, messageID, emojiID, userID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, channelID+"/"+messageID+"/"+emojiID+"/"+userID)
	return nil
}

func (m *mockMessageClient) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	_ ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, data)
	return &discordgo.Message{ID: "555", ChannelID: channelID}, nil
}

func (m *mockMessageClient) ChannelMessageDelete(
	channelID, messageID string,
	_ ...discordgo.RequestOption,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, channelID+"/"+messageID)
	return nil
}

// mockScheduler collects scheduled calls until fireAll runs them.
type mockScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	calls  []func()
}

func (m *mockScheduler) Schedule(delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, delay)
	m.calls = append(m.calls, fn)
}

func (m *mockScheduler) fireAll() {
	m.mu.Lock()
	calls := m.calls
	m.calls = nil
	m.mu.Unlock()

	for _, fn := range calls {
		fn()
	}
}

// newCommandInteraction builds a guild slash command interaction.
func newCommandInteraction(
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   testGuildID,
			ChannelID: testChannelID,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: testUserID, Username: "alice"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func stringOption(name, value string, focused bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionString,
		Value:   value,
		Focused: focused,
	}
}

// editDescription returns the description of the first embed of a deferred reply.
func editDescription(edit *discordgo.WebhookEdit) string {
	if edit == nil || edit.Embeds == nil || len(*edit.Embeds) == 0 {
		return ""
	}
	return (*edit.Embeds)[0].Description
}

// responseDescription returns the description of the first embed of a response.
func responseDescription(response *discordgo.InteractionResponse) string {
	if response == nil || response.Data == nil || len(response.Data.Embeds) == 0 {
		return ""
	}
	return response.Data.Embeds[0].Description
}
