package stream

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

// MemoryBackend is an in-process chat backend for local development.
// It follows the same get-or-create semantics as the Stream API.
type MemoryBackend struct {
	mu       sync.Mutex
	users    map[string]types.ChatIdentity
	channels map[string]*types.ChatChannel // keyed by type:id
	order    []string
	writes   int
	tokens   Tokens
}

// NewMemoryBackend creates an empty backend that signs tokens with secret.
// An empty secret gets a random one.
func NewMemoryBackend(secret string) *MemoryBackend {
	if secret == "" {
		secret = uuid.NewString()
	}
	return &MemoryBackend{
		users:    make(map[string]types.ChatIdentity),
		channels: make(map[string]*types.ChatChannel),
		tokens:   NewTokens(secret, 0),
	}
}

func (m *MemoryBackend) GetUser(_ context.Context, id string) (*types.ChatIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	u.Teams = slices.Clone(u.Teams)
	return &u, nil
}

func (m *MemoryBackend) CreateUser(_ context.Context, id string) (types.ChatIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	u := types.ChatIdentity{ID: id}
	m.users[id] = u
	return u, nil
}

func (m *MemoryBackend) UpdateUserTeams(_ context.Context, id string, teams []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	u := m.users[id]
	u.ID = id
	u.Teams = slices.Clone(teams)
	m.users[id] = u
	return nil
}

func (m *MemoryBackend) ListChannels(_ context.Context, team string) ([]types.ChatChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ChatChannel
	for _, key := range m.order {
		ch := m.channels[key]
		if ch.Team == team {
			c := *ch
			c.Members = slices.Clone(ch.Members)
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemoryBackend) AddChannelMember(_ context.Context, ch types.ChatChannel, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	existing, ok := m.channels[ch.Type+":"+ch.ID]
	if !ok {
		return &APIError{StatusCode: 404, Code: 16, Message: "channel " + ch.ID + " does not exist"}
	}
	if !existing.HasMember(id) {
		existing.Members = append(existing.Members, id)
	}
	return nil
}

func (m *MemoryBackend) CreateChannel(_ context.Context, ch types.ChatChannel, _ string) (types.ChatChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	key := ch.Type + ":" + ch.ID
	if existing, ok := m.channels[key]; ok {
		return *existing, nil
	}
	created := ch
	created.Members = slices.Clone(ch.Members)
	m.channels[key] = &created
	m.order = append(m.order, key)
	return created, nil
}

func (m *MemoryBackend) MintToken(userID string) (string, error) {
	return m.tokens.UserToken(userID)
}

// Writes returns the number of mutating calls received.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
