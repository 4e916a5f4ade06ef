package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// StatusDisplayService keeps at most one "Now Playing" message per guild in line
// with the guild's playback state. Callers must hold the guild's lock.
type StatusDisplayService struct {
	surface  ports.StatusSurface
	userInfo ports.UserInfoProvider
}

// NewStatusDisplayService creates a new StatusDisplayService.
func NewStatusDisplayService(
	surface ports.StatusSurface,
	userInfo ports.UserInfoProvider,
) *StatusDisplayService {
	return &StatusDisplayService{
		surface:  surface,
		userInfo: userInfo,
	}
}

// Sync makes the status message reflect state.
// With forceNew the existing message is replaced by a new one at the bottom of
// the text channel; otherwise it is edited in place when it still exists.
func (s *StatusDisplayService) Sync(ctx context.Context, state *domain.GuildState, forceNew bool) {
	if !state.DesiredPlaying() || state.TextChannelID() == 0 {
		s.Remove(ctx, state)
		return
	}

	info := s.buildInfo(state)

	if existing := state.StatusMessage(); existing != nil && !forceNew {
		err := s.surface.Edit(ctx, existing.ChannelID, existing.MessageID, info)
		if err == nil {
			return
		}
		if !errors.Is(err, ports.ErrSurfaceNotFound) {
			// The message still exists, so keep tracking it rather than posting a second one.
			slog.Warn("failed to edit status message",
				"guild", state.GuildID(),
				"message_id", existing.MessageID,
				"error", err,
			)
			return
		}
		slog.Debug("status message deleted externally, sending a new one",
			"guild", state.GuildID(),
			"message_id", existing.MessageID,
		)
		state.SetStatusMessage(nil)
	}

	s.Remove(ctx, state)

	channelID := state.TextChannelID()
	messageID, err := s.surface.Send(ctx, channelID, info)
	if err != nil {
		slog.Error("failed to send status message",
			"guild", state.GuildID(),
			"channel_id", channelID,
			"error", err,
		)
		return
	}

	message := domain.NewStatusMessage(channelID, messageID)
	state.SetStatusMessage(&message)
}

// Remove deletes the status message if there is one. It is safe to call repeatedly.
func (s *StatusDisplayService) Remove(ctx context.Context, state *domain.GuildState) {
	existing := state.StatusMessage()
	if existing == nil {
		return
	}
	state.SetStatusMessage(nil)

	err := s.surface.Delete(ctx, existing.ChannelID, existing.MessageID)
	if err != nil && !errors.Is(err, ports.ErrSurfaceNotFound) {
		slog.Warn("failed to delete status message",
			"guild", state.GuildID(),
			"message_id", existing.MessageID,
			"error", err,
		)
	}
}

func (s *StatusDisplayService) buildInfo(state *domain.GuildState) *ports.StatusInfo {
	stream := state.Stream()
	info := &ports.StatusInfo{
		StreamName:  stream.Name,
		StreamURL:   stream.URL,
		RequesterID: state.RequesterID(),
		Metadata:    state.CurrentMetadata(),
		StartedAt:   state.StartedAt(),
	}

	if s.userInfo != nil && state.RequesterID() != 0 {
		user, err := s.userInfo.GetUserInfo(state.GuildID(), state.RequesterID())
		if err != nil {
			slog.Debug("failed to get requester info",
				"guild", state.GuildID(),
				"user", state.RequesterID(),
				"error", err,
			)
		} else if user != nil {
			info.RequesterName = user.DisplayName
			info.RequesterAvatarURL = user.AvatarURL
		}
	}

	return info
}
