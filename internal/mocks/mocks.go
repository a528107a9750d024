package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dabubble/internal/session"
	"dabubble/internal/store"
)

type DocumentStoreMock struct {
	mock.Mock
}

func (m *DocumentStoreMock) AddDocument(ctx context.Context, collection string, value any) (string, error) {
	args := m.Called(ctx, collection, value)
	return args.String(0), args.Error(1)
}

func (m *DocumentStoreMock) GetDocument(ctx context.Context, collection, id string, out any) error {
	args := m.Called(ctx, collection, id, out)
	return args.Error(0)
}

func (m *DocumentStoreMock) SetDocument(ctx context.Context, collection, id string, value any) error {
	args := m.Called(ctx, collection, id, value)
	return args.Error(0)
}

func (m *DocumentStoreMock) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) error {
	args := m.Called(ctx, collection, id, fields)
	return args.Error(0)
}

func (m *DocumentStoreMock) SubscribeCollection(ctx context.Context, collection string, onSnapshot func([]store.Document)) (store.CancelFunc, error) {
	args := m.Called(ctx, collection, onSnapshot)
	var cancel store.CancelFunc
	if val := args.Get(0); val != nil {
		cancel = val.(store.CancelFunc)
	}
	return cancel, args.Error(1)
}

func (m *DocumentStoreMock) SubscribeDocument(ctx context.Context, collection, id string, onSnapshot func(store.Document)) (store.CancelFunc, error) {
	args := m.Called(ctx, collection, id, onSnapshot)
	var cancel store.CancelFunc
	if val := args.Get(0); val != nil {
		cancel = val.(store.CancelFunc)
	}
	return cancel, args.Error(1)
}

type StateStoreMock struct {
	mock.Mock
}

func (m *StateStoreMock) Get(ctx context.Context, userID string) (session.State, error) {
	args := m.Called(ctx, userID)
	var state session.State
	if val := args.Get(0); val != nil {
		state = val.(session.State)
	}
	return state, args.Error(1)
}

func (m *StateStoreMock) Save(ctx context.Context, userID string, state session.State) error {
	args := m.Called(ctx, userID, state)
	return args.Error(0)
}

func (m *StateStoreMock) Clear(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

var _ store.DocumentStore = (*DocumentStoreMock)(nil)
var _ session.StateStore = (*StateStoreMock)(nil)
