package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyStateStore keeps session state in Valkey under a per-user key with a
// TTL, so abandoned sessions age out on their own.
type ValkeyStateStore struct {
	client valkey.Client
	ttl    time.Duration
}

func NewValkeyStateStore(addr string, ttl time.Duration) (*ValkeyStateStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect valkey: %w", err)
	}
	return &ValkeyStateStore{client: client, ttl: ttl}, nil
}

var _ StateStore = (*ValkeyStateStore)(nil)

func (s *ValkeyStateStore) Get(ctx context.Context, userID string) (State, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(userID)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("get session %s: %w", userID, err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, fmt.Errorf("decode session %s: %w", userID, err)
	}
	return state, nil
}

func (s *ValkeyStateStore) Save(ctx context.Context, userID string, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", userID, err)
	}
	cmd := s.client.B().Set().Key(s.key(userID)).Value(string(raw)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save session %s: %w", userID, err)
	}
	return nil
}

func (s *ValkeyStateStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(userID)).Build()).Error(); err != nil {
		return fmt.Errorf("clear session %s: %w", userID, err)
	}
	return nil
}

func (s *ValkeyStateStore) Close() {
	s.client.Close()
}

func (s *ValkeyStateStore) key(userID string) string {
	return "session:" + userID
}
