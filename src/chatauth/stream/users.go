package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

type userPayload struct {
	ID    string   `json:"id"`
	Teams []string `json:"teams,omitempty"`
}

func (u userPayload) identity() types.ChatIdentity {
	return types.ChatIdentity{ID: u.ID, Teams: u.Teams}
}

// GetUser returns the user with id, or nil when it does not exist.
func (c *Client) GetUser(ctx context.Context, id string) (*types.ChatIdentity, error) {
	filter, err := json.Marshal(map[string]any{
		"filter_conditions": map[string]any{"id": map[string]any{"$in": []string{id}}},
		"limit":             1,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Users []userPayload `json:"users"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", url.Values{"payload": {string(filter)}}, nil, &resp); err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	if len(resp.Users) == 0 {
		return nil, nil
	}
	u := resp.Users[0].identity()
	return &u, nil
}

// CreateUser upserts a bare user record with id.
func (c *Client) CreateUser(ctx context.Context, id string) (types.ChatIdentity, error) {
	body := map[string]any{"users": map[string]userPayload{id: {ID: id}}}

	var resp struct {
		Users map[string]userPayload `json:"users"`
	}
	if err := c.do(ctx, http.MethodPost, "/users", nil, body, &resp); err != nil {
		return types.ChatIdentity{}, fmt.Errorf("upsert user: %w", err)
	}
	if u, ok := resp.Users[id]; ok {
		return u.identity(), nil
	}
	return types.ChatIdentity{ID: id}, nil
}

// UpdateUserTeams replaces the user's team set, leaving other fields intact.
func (c *Client) UpdateUserTeams(ctx context.Context, id string, teams []string) error {
	body := map[string]any{
		"users": []map[string]any{{
			"id":  id,
			"set": map[string]any{"teams": teams},
		}},
	}
	if err := c.do(ctx, http.MethodPatch, "/users", nil, body, nil); err != nil {
		return fmt.Errorf("update user teams: %w", err)
	}
	return nil
}
