package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/store"
	"dabubble/internal/store/memory"
)

func newService(t *testing.T) (*Service, *memory.Store, *mirror.Mirror) {
	t.Helper()
	s := memory.New()
	m := mirror.New(s)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return New(m, s), s, m
}

func seed(t *testing.T, s *memory.Store, coll, id string, value any) {
	t.Helper()
	require.NoError(t, s.SetDocument(context.Background(), coll, id, value))
}

func TestSearchWithoutSigilMatchesNothing(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionChannels, "c1", models.Channel{Name: "dev", Members: []string{"u1"}})

	assert.Nil(t, svc.Search("u1", "dev"))
	assert.Nil(t, svc.Search("u1", ""))
}

func TestSearchChannelsRestrictedToMembership(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionChannels, "c1", models.Channel{Name: "Entwicklerteam", Members: []string{"u1", "u2"}})
	seed(t, s, store.CollectionChannels, "c2", models.Channel{Name: "Entwurf", Members: []string{"u2"}})
	seed(t, s, store.CollectionChannels, "c3", models.Channel{Name: "Marketing", Members: []string{"u1"}})

	results := svc.Search("u1", "#ent")
	require.Len(t, results, 1)
	assert.Equal(t, KindChannel, results[0].Kind)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "Entwicklerteam", results[0].Name)
}

func TestSearchChannelsEmptyQueryListsAllMemberChannels(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionChannels, "c1", models.Channel{Name: "a", Members: []string{"u1"}})
	seed(t, s, store.CollectionChannels, "c2", models.Channel{Name: "b", Members: []string{"u2"}})
	seed(t, s, store.CollectionChannels, "c3", models.Channel{Name: "c", Members: []string{"u1"}})

	results := svc.Search("u1", "#")
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "c3", results[1].ID)
}

func TestSearchUsersMatchesNameOrEmail(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionUsers, "u1", models.User{Name: "Frederik Beck", Email: "frederik@beispiel.de", Online: true})
	seed(t, s, store.CollectionUsers, "u2", models.User{Name: "Sofia Müller", Email: "sofia@beispiel.de"})
	seed(t, s, store.CollectionUsers, "u3", models.User{Name: "Noah Braun", Email: "noah.frederiksen@beispiel.de"})

	results := svc.Search("u2", "@frederik")
	require.Len(t, results, 2)
	assert.Equal(t, "u1", results[0].ID)
	assert.True(t, results[0].Online)
	assert.Equal(t, "u3", results[1].ID)

	// user hits are not membership restricted
	results = svc.Search("u9", "@sofia")
	require.Len(t, results, 1)
	assert.Equal(t, "Sofia Müller", results[0].Name)
}

func TestSearchCaseInsensitive(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionUsers, "u1", models.User{Name: "Frederik"})

	require.Len(t, svc.Search("u1", "@FREDERIK"), 1)
	require.Len(t, svc.Search("u1", "@frederik"), 1)
}

func TestResolveDMTargetExistingThread(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionUsers, "u1", models.User{Name: "a", DMs: []models.DirectMessageThread{{ID: "t12", Contact: "u2"}}})
	seed(t, s, store.CollectionUsers, "u2", models.User{Name: "b", DMs: []models.DirectMessageThread{{ID: "t12", Contact: "u1"}}})

	id, err := svc.ResolveDMTarget(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, "t12", id)
}

func TestResolveDMTargetCreatesSymmetricStubs(t *testing.T) {
	svc, s, m := newService(t)
	seed(t, s, store.CollectionUsers, "u1", models.User{Name: "a"})
	seed(t, s, store.CollectionUsers, "u2", models.User{Name: "b"})

	id, err := svc.ResolveDMTarget(context.Background(), "u1", "u2")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	me, ok := m.UserByID("u1")
	require.True(t, ok)
	require.Len(t, me.DMs, 1)
	assert.Equal(t, id, me.DMs[0].ID)
	assert.Equal(t, "u2", me.DMs[0].Contact)
	assert.Empty(t, me.DMs[0].Posts)

	target, ok := m.UserByID("u2")
	require.True(t, ok)
	require.Len(t, target.DMs, 1)
	// both stubs share the one thread id
	assert.Equal(t, id, target.DMs[0].ID)
	assert.Equal(t, "u1", target.DMs[0].Contact)

	// resolving again returns the existing thread, no duplicate stubs
	again, err := svc.ResolveDMTarget(context.Background(), "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, id, again)
	me, _ = m.UserByID("u1")
	assert.Len(t, me.DMs, 1)
}

func TestResolveDMTargetSelf(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionUsers, "u1", models.User{Name: "a"})

	id, err := svc.ResolveDMTarget(context.Background(), "u1", "u1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestResolveDMTargetUnknownUser(t *testing.T) {
	svc, s, _ := newService(t)
	seed(t, s, store.CollectionUsers, "u1", models.User{Name: "a"})

	_, err := svc.ResolveDMTarget(context.Background(), "u1", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.ResolveDMTarget(context.Background(), "ghost", "u1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
