package directory

import (
	"context"
	"errors"
	"strings"

	"dabubble/internal/ids"
	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/store"
)

// Search input sigils. A query without a sigil matches nothing.
const (
	ChannelSigil = "#"
	UserSigil    = "@"
)

// ErrUserNotFound is returned when a DM target cannot be resolved.
var ErrUserNotFound = errors.New("user not found")

type ResultKind string

const (
	KindChannel ResultKind = "channel"
	KindUser    ResultKind = "user"
)

// Result is one navigable search hit.
type Result struct {
	Kind   ResultKind `json:"kind"`
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email,omitempty"`
	Avatar string     `json:"avatar,omitempty"`
	Online bool       `json:"online,omitempty"`
}

// Service searches the mirrored directories and resolves users into
// navigable DM thread ids.
type Service struct {
	mirror *mirror.Mirror
	store  store.DocumentStore
}

func New(m *mirror.Mirror, st store.DocumentStore) *Service {
	return &Service{mirror: m, store: st}
}

// Search performs a case-insensitive substring match over the mirrors.
// Channel hits are restricted to channels the caller belongs to; user hits
// match on name or email. Results keep the mirror's insertion order, there
// is no ranking.
func (s *Service) Search(userID, input string) []Result {
	switch {
	case strings.HasPrefix(input, ChannelSigil):
		return s.searchChannels(userID, strings.TrimPrefix(input, ChannelSigil))
	case strings.HasPrefix(input, UserSigil):
		return s.searchUsers(strings.TrimPrefix(input, UserSigil))
	default:
		return nil
	}
}

func (s *Service) searchChannels(userID, query string) []Result {
	query = strings.ToLower(query)
	var results []Result
	for _, ch := range s.mirror.Channels() {
		if !ch.HasMember(userID) {
			continue
		}
		if !strings.Contains(strings.ToLower(ch.Name), query) {
			continue
		}
		results = append(results, Result{Kind: KindChannel, ID: ch.ID, Name: ch.Name})
	}
	return results
}

func (s *Service) searchUsers(query string) []Result {
	query = strings.ToLower(query)
	var results []Result
	for _, u := range s.mirror.Users() {
		if !strings.Contains(strings.ToLower(u.Name), query) &&
			!strings.Contains(strings.ToLower(u.Email), query) {
			continue
		}
		results = append(results, Result{
			Kind:   KindUser,
			ID:     u.ID,
			Name:   u.Name,
			Email:  u.Email,
			Avatar: u.Avatar,
			Online: u.Online,
		})
	}
	return results
}

// ResolveDMTarget returns the id of the DM thread between the caller and the
// target, creating symmetric empty stubs in both user records when none
// exists yet. The two stub writes are sequential, not atomic. Resolving
// yourself returns the neutral empty channel id; navigation to a self-DM
// goes through the session resolver instead.
func (s *Service) ResolveDMTarget(ctx context.Context, userID, targetID string) (string, error) {
	if targetID == userID {
		return "", nil
	}

	me, ok := s.mirror.UserByID(userID)
	if !ok {
		return "", ErrUserNotFound
	}
	if t, ok := me.DMThreadWith(targetID); ok {
		return t.ID, nil
	}

	target, ok := s.mirror.UserByID(targetID)
	if !ok {
		return "", ErrUserNotFound
	}

	threadID := ids.New()
	me.DMs = append(me.DMs, models.DirectMessageThread{ID: threadID, Contact: targetID, Posts: []models.Post{}})
	if err := s.store.SetDocument(ctx, store.CollectionUsers, me.ID, me); err != nil {
		return "", err
	}
	target.DMs = append(target.DMs, models.DirectMessageThread{ID: threadID, Contact: userID, Posts: []models.Post{}})
	if err := s.store.SetDocument(ctx, store.CollectionUsers, target.ID, target); err != nil {
		return "", err
	}
	return threadID, nil
}
