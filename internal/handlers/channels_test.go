package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dabubble/internal/messaging"
	"dabubble/internal/mirror"
	"dabubble/internal/models"
	"dabubble/internal/store"
	"dabubble/internal/store/memory"
)

type channelServiceMock struct {
	mock.Mock
}

func (m *channelServiceMock) CreateChannel(ctx context.Context, userID, name, description string) (models.Channel, error) {
	args := m.Called(ctx, userID, name, description)
	var ch models.Channel
	if val := args.Get(0); val != nil {
		ch = val.(models.Channel)
	}
	return ch, args.Error(1)
}

func (m *channelServiceMock) UpdateChannel(ctx context.Context, channelID, name, description string) error {
	args := m.Called(ctx, channelID, name, description)
	return args.Error(0)
}

func (m *channelServiceMock) AddMembers(ctx context.Context, userID string, memberIDs []string) error {
	args := m.Called(ctx, userID, memberIDs)
	return args.Error(0)
}

func (m *channelServiceMock) LeaveChannel(ctx context.Context, userID, channelID string) error {
	args := m.Called(ctx, userID, channelID)
	return args.Error(0)
}

var _ channelService = (*channelServiceMock)(nil)

func newTestMirror(t *testing.T, channels ...models.Channel) *mirror.Mirror {
	t.Helper()
	s := memory.New()
	for _, ch := range channels {
		require.NoError(t, s.SetDocument(context.Background(), store.CollectionChannels, ch.ID, ch))
	}
	m := mirror.New(s)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return m
}

func setupChannelRouter(handler *ChannelHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		c.Next()
	})
	r.POST("/channels", handler.CreateChannel)
	r.GET("/channels", handler.ListChannels)
	r.GET("/channels/:channel_id/messages", handler.GetChannelMessages)
	r.PUT("/channels/:channel_id", handler.UpdateChannel)
	r.POST("/channels/members", handler.AddMembers)
	r.DELETE("/channels/:channel_id/members/me", handler.LeaveChannel)
	return r
}

func TestCreateChannelSuccess(t *testing.T) {
	svc := new(channelServiceMock)
	handler := NewChannelHandler(svc, newTestMirror(t), nil)
	router := setupChannelRouter(handler)

	svc.On("CreateChannel", mock.Anything, "u1", "dev", "all things dev").
		Return(models.Channel{ID: "c1", Name: "dev"}, nil).Once()

	body := bytes.NewBufferString(`{"name":"dev","description":"all things dev"}`)
	req := httptest.NewRequest(http.MethodPost, "/channels", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "c1", resp["channel_id"])
	svc.AssertExpectations(t)
}

func TestCreateChannelMissingName(t *testing.T) {
	handler := NewChannelHandler(new(channelServiceMock), newTestMirror(t), nil)
	router := setupChannelRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/channels", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListChannelsOnlyMemberships(t *testing.T) {
	m := newTestMirror(t,
		models.Channel{ID: "c1", Name: "dev", Members: []string{"u1", "u2"}},
		models.Channel{ID: "c2", Name: "ops", Members: []string{"u2"}},
	)
	handler := NewChannelHandler(new(channelServiceMock), m, nil)
	router := setupChannelRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Channels []struct {
			ID      string `json:"id"`
			Members int    `json:"members"`
		} `json:"channels"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "c1", resp.Channels[0].ID)
	assert.Equal(t, 2, resp.Channels[0].Members)
}

func TestGetChannelMessages(t *testing.T) {
	m := newTestMirror(t,
		models.Channel{ID: "c1", Members: []string{"u1"}, Posts: []models.Post{{ID: "p1", Text: "hi"}}},
		models.Channel{ID: "c2", Members: []string{"u2"}},
	)
	handler := NewChannelHandler(new(channelServiceMock), m, nil)
	router := setupChannelRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/channels/c1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Post `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "p1", resp.Messages[0].ID)

	// non-member
	req = httptest.NewRequest(http.MethodGet, "/channels/c2/messages", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// unknown channel
	req = httptest.NewRequest(http.MethodGet, "/channels/ghost/messages", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateChannelMissingIsSilentNoop(t *testing.T) {
	svc := new(channelServiceMock)
	handler := NewChannelHandler(svc, newTestMirror(t), nil)
	router := setupChannelRouter(handler)

	svc.On("UpdateChannel", mock.Anything, "ghost", "new", "").
		Return(messaging.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodPut, "/channels/ghost", bytes.NewBufferString(`{"name":"new"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestAddMembersNoChannelContextIsConflict(t *testing.T) {
	svc := new(channelServiceMock)
	handler := NewChannelHandler(svc, newTestMirror(t), nil)
	router := setupChannelRouter(handler)

	svc.On("AddMembers", mock.Anything, "u1", []string{"u2"}).
		Return(messaging.ErrNoChannelContext).Once()

	body := bytes.NewBufferString(`{"member_ids":["u2"]}`)
	req := httptest.NewRequest(http.MethodPost, "/channels/members", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	svc.AssertExpectations(t)
}

func TestAddMembersSuccess(t *testing.T) {
	svc := new(channelServiceMock)
	handler := NewChannelHandler(svc, newTestMirror(t), nil)
	router := setupChannelRouter(handler)

	svc.On("AddMembers", mock.Anything, "u1", []string{"u2", "u3"}).Return(nil).Once()

	body := bytes.NewBufferString(`{"member_ids":["u2","u3"]}`)
	req := httptest.NewRequest(http.MethodPost, "/channels/members", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestLeaveChannelSuccess(t *testing.T) {
	svc := new(channelServiceMock)
	handler := NewChannelHandler(svc, newTestMirror(t), nil)
	router := setupChannelRouter(handler)

	svc.On("LeaveChannel", mock.Anything, "u1", "c1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/channels/c1/members/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
