package mirror

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dabubble/internal/mocks"
	"dabubble/internal/models"
	"dabubble/internal/store"
	"dabubble/internal/store/memory"
)

func seedUser(t *testing.T, s *memory.Store, user models.User) {
	t.Helper()
	require.NoError(t, s.SetDocument(context.Background(), store.CollectionUsers, user.ID, user))
}

func seedChannel(t *testing.T, s *memory.Store, ch models.Channel) {
	t.Helper()
	require.NoError(t, s.SetDocument(context.Background(), store.CollectionChannels, ch.ID, ch))
}

func TestStartLoadsInitialSnapshots(t *testing.T) {
	s := memory.New()
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik"})
	seedUser(t, s, models.User{ID: "u2", Name: "Sofia"})
	seedChannel(t, s, models.Channel{ID: "c1", Name: "Entwicklerteam", Members: []string{"u1"}})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	require.Len(t, m.Users(), 2)
	assert.Equal(t, "Frederik", m.Users()[0].Name)
	require.Len(t, m.Channels(), 1)
	assert.Equal(t, "Entwicklerteam", m.Channels()[0].Name)
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	s := memory.New()
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik"})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	var calls int
	var lastLen int
	m.OnUsersChanged(func(users []models.User) {
		calls++
		lastLen = len(users)
	})

	seedUser(t, s, models.User{ID: "u2", Name: "Sofia"})

	// one handler call per snapshot, carrying the whole collection
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, lastLen)

	seedUser(t, s, models.User{ID: "u1", Name: "Renamed"})
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, lastLen)
	u, ok := m.UserByID("u1")
	require.True(t, ok)
	assert.Equal(t, "Renamed", u.Name)
}

func TestChannelsFor(t *testing.T) {
	s := memory.New()
	seedChannel(t, s, models.Channel{ID: "c1", Name: "a", Members: []string{"u1", "u2"}})
	seedChannel(t, s, models.Channel{ID: "c2", Name: "b", Members: []string{"u2"}})
	seedChannel(t, s, models.Channel{ID: "c3", Name: "c", Members: []string{"u1"}})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	got := m.ChannelsFor("u1")
	require.Len(t, got, 2)
	assert.Equal(t, "c1", got[0].ID)
	assert.Equal(t, "c3", got[1].ID)

	assert.Empty(t, m.ChannelsFor("u9"))
}

func TestByIDReturnsClone(t *testing.T) {
	s := memory.New()
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik", DMs: []models.DirectMessageThread{{ID: "t1", Contact: "u2"}}})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	u, ok := m.UserByID("u1")
	require.True(t, ok)
	u.Name = "mutated"
	u.DMs[0].Contact = "mutated"

	again, ok := m.UserByID("u1")
	require.True(t, ok)
	assert.Equal(t, "Frederik", again.Name)
	assert.Equal(t, "u2", again.DMs[0].Contact)
}

func TestSetActiveUserTracksOwnRecord(t *testing.T) {
	s := memory.New()
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik"})
	seedUser(t, s, models.User{ID: "u2", Name: "Sofia"})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	var seen []string
	m.OnActiveUserChanged(func(u models.User) { seen = append(seen, u.Name) })

	require.NoError(t, m.SetActiveUser(context.Background(), "u1"))
	active, ok := m.ActiveUser()
	require.True(t, ok)
	assert.Equal(t, "Frederik", active.Name)
	assert.Equal(t, []string{"Frederik"}, seen)

	seedUser(t, s, models.User{ID: "u1", Name: "Frederik II"})
	assert.Equal(t, []string{"Frederik", "Frederik II"}, seen)

	// identity change resubscribes; old record updates no longer arrive
	require.NoError(t, m.SetActiveUser(context.Background(), "u2"))
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik III"})
	active, ok = m.ActiveUser()
	require.True(t, ok)
	assert.Equal(t, "Sofia", active.Name)
}

func TestSetActiveUserSameIDIsNoop(t *testing.T) {
	s := memory.New()
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik"})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	require.NoError(t, m.SetActiveUser(context.Background(), "u1"))
	var calls int
	m.OnActiveUserChanged(func(models.User) { calls++ })

	require.NoError(t, m.SetActiveUser(context.Background(), "u1"))
	assert.Zero(t, calls)
}

func TestSetActiveUserEmptyClears(t *testing.T) {
	s := memory.New()
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik"})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	require.NoError(t, m.SetActiveUser(context.Background(), "u1"))
	require.NoError(t, m.SetActiveUser(context.Background(), ""))

	_, ok := m.ActiveUser()
	assert.False(t, ok)
}

func TestHandlerCancel(t *testing.T) {
	s := memory.New()

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	var calls int
	cancel := m.OnChannelsChanged(func([]models.Channel) { calls++ })
	seedChannel(t, s, models.Channel{ID: "c1", Name: "a"})
	require.Equal(t, 1, calls)

	cancel()
	seedChannel(t, s, models.Channel{ID: "c2", Name: "b"})
	assert.Equal(t, 1, calls)
}

func TestStartCancelsFirstSubscriptionOnFailure(t *testing.T) {
	st := new(mocks.DocumentStoreMock)
	cancelled := false
	st.On("SubscribeCollection", mock.Anything, store.CollectionUsers, mock.Anything).
		Return(store.CancelFunc(func() { cancelled = true }), nil).Once()
	st.On("SubscribeCollection", mock.Anything, store.CollectionChannels, mock.Anything).
		Return(nil, assert.AnError).Once()

	m := New(st)
	err := m.Start(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.True(t, cancelled)
	st.AssertExpectations(t)
}

func TestMalformedDocumentSkipped(t *testing.T) {
	s := memory.New()
	// a string is not a user object
	require.NoError(t, s.SetDocument(context.Background(), store.CollectionUsers, "bad", "not-a-user"))
	seedUser(t, s, models.User{ID: "u1", Name: "Frederik"})

	m := New(s)
	require.NoError(t, m.Start(context.Background()))
	defer m.Close()

	require.Len(t, m.Users(), 1)
	assert.Equal(t, "u1", m.Users()[0].ID)
}
