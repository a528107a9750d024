package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dabubble/internal/ids"
	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/observability"
	"dabubble/internal/session"
	"dabubble/internal/store"
)

// ErrNotFound is the base of the absence-of-data error family. Callers treat
// anything wrapping it as a silent no-op: the UI assumes non-throwing
// behavior for a missing channel, post or user and simply renders nothing.
var ErrNotFound = errors.New("not found")

var (
	ErrNoChannelSelected    = fmt.Errorf("no channel selected: %w", ErrNotFound)
	ErrConversationNotFound = fmt.Errorf("conversation: %w", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("user: %w", ErrNotFound)
	ErrPostNotFound         = fmt.Errorf("post: %w", ErrNotFound)
	ErrReactionNotFound     = fmt.Errorf("reaction: %w", ErrNotFound)

	ErrEmptyText = errors.New("empty message text")
)

// Service is the messaging facade: it creates, fans out and mutates posts
// across channels and DM threads. It reads the mirror, writes through the
// document store, and relies on the mirror's listener to catch up; local
// state is never mutated directly.
//
// All writes are read-modify-write of whole documents with no
// compare-and-swap: two racing thread replies or edits to the same post can
// silently overwrite each other. At most one concurrent writer per
// conversation is assumed.
type Service struct {
	mirror   *mirror.Mirror
	store    store.DocumentStore
	sessions session.StateStore
}

func New(m *mirror.Mirror, st store.DocumentStore, sessions session.StateStore) *Service {
	return &Service{mirror: m, store: st, sessions: sessions}
}

// conversation is the resolved current target of a facade operation: either
// a channel or one side of a DM thread (owner + thread index).
type conversation struct {
	channel   *models.Channel
	dmOwner   *models.User
	threadIdx int
}

func (c conversation) kind() string {
	if c.channel != nil {
		return "channel"
	}
	return "dm"
}

// PostNewMessage appends a post to the current conversation and returns it
// together with the conversation id. For a DM the post is written to both
// participants' thread copies, two independent writes with no transaction;
// if the second fails the sender keeps the post and the contact does not, an
// accepted inconsistency. A self-DM gets exactly one copy.
func (s *Service) PostNewMessage(ctx context.Context, userID, text string) (models.Post, string, error) {
	if strings.TrimSpace(text) == "" {
		return models.Post{}, "", ErrEmptyText
	}
	conv, err := s.currentConversation(ctx, userID)
	if err != nil {
		return models.Post{}, "", err
	}

	post := models.Post{
		ID:        ids.New(),
		Author:    userID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}

	if conv.channel != nil {
		conv.channel.Posts = append(conv.channel.Posts, post)
		if err := s.store.SetDocument(ctx, store.CollectionChannels, conv.channel.ID, conv.channel); err != nil {
			return models.Post{}, "", err
		}
		observability.IncMessagePosted("channel")
		return post, conv.channel.ID, nil
	}

	threadID := conv.dmOwner.DMs[conv.threadIdx].ID
	err = s.fanOutDM(ctx, conv, func(t *models.DirectMessageThread) bool {
		t.Posts = append(t.Posts, post)
		return true
	})
	if err != nil {
		return models.Post{}, "", err
	}
	observability.IncMessagePosted("dm")
	return post, threadID, nil
}

// PostThreadReply locates the parent post in the current conversation's
// top-level posts, marks it as a thread and appends the reply. The whole
// parent post is written back, not appended remotely.
func (s *Service) PostThreadReply(ctx context.Context, userID, parentPostID, text string) (models.Post, string, error) {
	if strings.TrimSpace(text) == "" {
		return models.Post{}, "", ErrEmptyText
	}

	reply := models.Post{
		ID:        ids.New(),
		Author:    userID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}

	convID, err := s.updateCurrentPosts(ctx, userID, func(posts []models.Post) bool {
		for i := range posts {
			if posts[i].ID == parentPostID {
				posts[i].Thread = true
				posts[i].ThreadMsgs = append(posts[i].ThreadMsgs, reply)
				return true
			}
		}
		return false
	})
	if err != nil {
		return models.Post{}, "", err
	}
	observability.IncMessagePosted("thread")
	return reply, convID, nil
}

// EditMessage overwrites the text of a top-level post or a thread reply in
// the current conversation. All other post fields are left untouched.
func (s *Service) EditMessage(ctx context.Context, userID, postID, newText string, isThreadReply bool) (string, error) {
	if strings.TrimSpace(newText) == "" {
		return "", ErrEmptyText
	}
	return s.updateCurrentPosts(ctx, userID, func(posts []models.Post) bool {
		if !isThreadReply {
			for i := range posts {
				if posts[i].ID == postID {
					posts[i].Text = newText
					return true
				}
			}
			return false
		}
		for i := range posts {
			for j := range posts[i].ThreadMsgs {
				if posts[i].ThreadMsgs[j].ID == postID {
					posts[i].ThreadMsgs[j].Text = newText
					return true
				}
			}
		}
		return false
	})
}

// AddReaction finds or creates the reaction entry for the emoji on the
// target post, increments its count and records the reactor. Count is stored
// rather than derived from the name list; concurrent reactors can race and
// leave the two out of sync.
func (s *Service) AddReaction(ctx context.Context, userID, postID, emoji string) (string, error) {
	if emoji == "" {
		return "", ErrEmptyText
	}
	return s.updateCurrentPosts(ctx, userID, func(posts []models.Post) bool {
		p := findPost(posts, postID)
		if p == nil {
			return false
		}
		for i := range p.Reactions {
			if p.Reactions[i].Type == emoji {
				p.Reactions[i].Count++
				p.Reactions[i].Names = append(p.Reactions[i].Names, userID)
				return true
			}
		}
		p.Reactions = append(p.Reactions, models.Reaction{Type: emoji, Names: []string{userID}, Count: 1})
		return true
	})
}

// RemoveReaction withdraws the user from the emoji's reaction entry,
// dropping the entry entirely once nobody is left on it.
func (s *Service) RemoveReaction(ctx context.Context, userID, postID, emoji string) (string, error) {
	postFound := false
	convID, err := s.updateCurrentPosts(ctx, userID, func(posts []models.Post) bool {
		p := findPost(posts, postID)
		if p == nil {
			return false
		}
		postFound = true
		for i := range p.Reactions {
			r := &p.Reactions[i]
			if r.Type != emoji || !r.HasReactor(userID) {
				continue
			}
			for j, name := range r.Names {
				if name == userID {
					r.Names = append(r.Names[:j], r.Names[j+1:]...)
					break
				}
			}
			r.Count--
			if r.Count <= 0 || len(r.Names) == 0 {
				p.Reactions = append(p.Reactions[:i], p.Reactions[i+1:]...)
			}
			return true
		}
		// Nothing to withdraw, so skip the write entirely.
		return false
	})
	if err != nil {
		if errors.Is(err, ErrPostNotFound) && postFound {
			return "", ErrReactionNotFound
		}
		return "", err
	}
	return convID, nil
}

// currentConversation resolves the session's current channel id against the
// mirror: a channel if one matches, otherwise the caller's DM thread with
// that id.
func (s *Service) currentConversation(ctx context.Context, userID string) (conversation, error) {
	state, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return conversation{}, err
	}
	if state.CurrentChannel == "" {
		return conversation{}, ErrNoChannelSelected
	}
	return s.conversationByID(userID, state.CurrentChannel)
}

func (s *Service) conversationByID(userID, convID string) (conversation, error) {
	if ch, ok := s.mirror.ChannelByID(convID); ok {
		return conversation{channel: &ch}, nil
	}
	owner, ok := s.mirror.UserByID(userID)
	if !ok {
		return conversation{}, ErrUserNotFound
	}
	for i := range owner.DMs {
		if owner.DMs[i].ID == convID {
			return conversation{dmOwner: &owner, threadIdx: i}, nil
		}
	}
	return conversation{}, ErrConversationNotFound
}

// updateCurrentPosts applies a post-level mutation to the current
// conversation and writes the containing document(s) back. For DMs the
// mutation is applied to both thread copies.
func (s *Service) updateCurrentPosts(ctx context.Context, userID string, apply func(posts []models.Post) bool) (string, error) {
	conv, err := s.currentConversation(ctx, userID)
	if err != nil {
		return "", err
	}

	if conv.channel != nil {
		if !apply(conv.channel.Posts) {
			return "", ErrPostNotFound
		}
		return conv.channel.ID, s.store.SetDocument(ctx, store.CollectionChannels, conv.channel.ID, conv.channel)
	}

	threadID := conv.dmOwner.DMs[conv.threadIdx].ID
	return threadID, s.fanOutDM(ctx, conv, func(t *models.DirectMessageThread) bool {
		return apply(t.Posts)
	})
}

// fanOutDM applies the mutation to the owner's thread copy and, unless this
// is a self-DM, to the contact's mirrored copy. The two writes are issued
// sequentially and independently; a failure between them leaves the
// conversation visible to one side only.
func (s *Service) fanOutDM(ctx context.Context, conv conversation, mutate func(*models.DirectMessageThread) bool) error {
	owner := conv.dmOwner
	thread := &owner.DMs[conv.threadIdx]
	contactID := thread.Contact

	if !mutate(thread) {
		return ErrPostNotFound
	}
	if err := s.store.SetDocument(ctx, store.CollectionUsers, owner.ID, owner); err != nil {
		return err
	}
	if contactID == owner.ID {
		// Self-DM: single copy, nothing to fan out.
		return nil
	}

	contact, ok := s.mirror.UserByID(contactID)
	if !ok {
		// Contact record missing; the owner-side write stands.
		return nil
	}
	for i := range contact.DMs {
		if contact.DMs[i].Contact == owner.ID {
			if !mutate(&contact.DMs[i]) {
				return nil
			}
			return s.store.SetDocument(ctx, store.CollectionUsers, contact.ID, contact)
		}
	}
	return nil
}

// findPost looks the post up by id among the top-level posts and their
// thread replies.
func findPost(posts []models.Post, postID string) *models.Post {
	for i := range posts {
		if posts[i].ID == postID {
			return &posts[i]
		}
		for j := range posts[i].ThreadMsgs {
			if posts[i].ThreadMsgs[j].ID == postID {
				return &posts[i].ThreadMsgs[j]
			}
		}
	}
	return nil
}
