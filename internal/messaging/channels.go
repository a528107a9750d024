package messaging

import (
	"context"
	"errors"
	"fmt"

	"dabubble/internal/models"
	"dabubble/internal/store"
)

// ErrNoChannelContext is returned by member management when no current
// channel is resolvable. Unlike the ErrNotFound family this one is a real
// error: callers surface it to the user instead of absorbing it.
var ErrNoChannelContext = errors.New("no resolvable current channel")

// ErrEmptyName rejects channel creation without a name.
var ErrEmptyName = errors.New("channel name is required")

// CreateChannel stores a new channel with the caller as owner and sole
// initial member.
func (s *Service) CreateChannel(ctx context.Context, userID, name, description string) (models.Channel, error) {
	if name == "" {
		return models.Channel{}, ErrEmptyName
	}
	ch := models.Channel{
		Name:        name,
		Description: description,
		Owner:       userID,
		Members:     []string{userID},
	}
	id, err := s.store.AddDocument(ctx, store.CollectionChannels, ch)
	if err != nil {
		return models.Channel{}, fmt.Errorf("create channel: %w", err)
	}
	ch.ID = id
	return ch, nil
}

// UpdateChannel overwrites the channel's name and/or description. Empty
// arguments leave the corresponding field untouched.
func (s *Service) UpdateChannel(ctx context.Context, channelID, name, description string) error {
	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
	}
	if description != "" {
		fields["description"] = description
	}
	if len(fields) == 0 {
		return nil
	}
	err := s.store.UpdateDocument(ctx, store.CollectionChannels, channelID, fields)
	if errors.Is(err, store.ErrNoDocument) {
		return ErrConversationNotFound
	}
	return err
}

// AddMembers appends the given users to the current channel's membership.
// Users already present or unknown to the mirror are skipped.
func (s *Service) AddMembers(ctx context.Context, userID string, memberIDs []string) error {
	state, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	if state.CurrentChannel == "" {
		return ErrNoChannelContext
	}
	ch, ok := s.mirror.ChannelByID(state.CurrentChannel)
	if !ok {
		return ErrNoChannelContext
	}

	changed := false
	for _, id := range memberIDs {
		if ch.HasMember(id) {
			continue
		}
		if _, known := s.mirror.UserByID(id); !known {
			continue
		}
		ch.Members = append(ch.Members, id)
		changed = true
	}
	if !changed {
		return nil
	}
	return s.store.SetDocument(ctx, store.CollectionChannels, ch.ID, ch)
}

// LeaveChannel removes the caller from the channel's membership. The owner
// stays a member unless leaving through exactly this operation.
func (s *Service) LeaveChannel(ctx context.Context, userID, channelID string) error {
	ch, ok := s.mirror.ChannelByID(channelID)
	if !ok {
		return ErrConversationNotFound
	}
	for i, id := range ch.Members {
		if id == userID {
			ch.Members = append(ch.Members[:i], ch.Members[i+1:]...)
			return s.store.SetDocument(ctx, store.CollectionChannels, ch.ID, ch)
		}
	}
	return ErrUserNotFound
}

// UpdateProfile overwrites the user's display name and/or avatar.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, avatar string) error {
	fields := map[string]any{}
	if name != "" {
		fields["name"] = name
	}
	if avatar != "" {
		fields["avatar"] = avatar
	}
	if len(fields) == 0 {
		return nil
	}
	err := s.store.UpdateDocument(ctx, store.CollectionUsers, userID, fields)
	if errors.Is(err, store.ErrNoDocument) {
		return ErrUserNotFound
	}
	return err
}

// SetOnline flips the user's presence flag.
func (s *Service) SetOnline(ctx context.Context, userID string, online bool) error {
	err := s.store.UpdateDocument(ctx, store.CollectionUsers, userID, map[string]any{"online": online})
	if errors.Is(err, store.ErrNoDocument) {
		return ErrUserNotFound
	}
	return err
}
