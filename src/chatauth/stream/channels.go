package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/types"
)

const channelPageSize = 30

type channelData struct {
	ID          string   `json:"id,omitempty"`
	Type        string   `json:"type,omitempty"`
	Name        string   `json:"name,omitempty"`
	Team        string   `json:"team,omitempty"`
	Members     []string `json:"members,omitempty"`
	CreatedByID string   `json:"created_by_id,omitempty"`
}

type channelState struct {
	Channel channelData `json:"channel"`
	Members []struct {
		UserID string `json:"user_id"`
	} `json:"members"`
}

func (s channelState) chatChannel() types.ChatChannel {
	ch := types.ChatChannel{
		Type: s.Channel.Type,
		ID:   s.Channel.ID,
		Name: s.Channel.Name,
		Team: s.Channel.Team,
	}
	for _, m := range s.Members {
		ch.Members = append(ch.Members, m.UserID)
	}
	return ch
}

func channelPath(ch types.ChatChannel) string {
	return "/channels/" + url.PathEscape(ch.Type) + "/" + url.PathEscape(ch.ID)
}

// ListChannels returns every channel scoped to team.
func (c *Client) ListChannels(ctx context.Context, team string) ([]types.ChatChannel, error) {
	var channels []types.ChatChannel
	for offset := 0; ; offset += channelPageSize {
		body := map[string]any{
			"filter_conditions": map[string]any{"team": team},
			"state":             true,
			"watch":             false,
			"presence":          false,
			"limit":             channelPageSize,
			"offset":            offset,
		}
		var resp struct {
			Channels []channelState `json:"channels"`
		}
		if err := c.do(ctx, http.MethodPost, "/channels", nil, body, &resp); err != nil {
			return nil, fmt.Errorf("query channels: %w", err)
		}
		for _, s := range resp.Channels {
			channels = append(channels, s.chatChannel())
		}
		if len(resp.Channels) < channelPageSize {
			return channels, nil
		}
	}
}

// AddChannelMember adds id to the channel. Adding an existing member is a no-op.
func (c *Client) AddChannelMember(ctx context.Context, ch types.ChatChannel, id string) error {
	body := map[string]any{"add_members": []string{id}}
	if err := c.do(ctx, http.MethodPost, channelPath(ch), nil, body, nil); err != nil {
		return fmt.Errorf("add member to %s: %w", ch.ID, err)
	}
	return nil
}

// CreateChannel gets or creates ch with its initial members. Creating a
// channel whose id already exists returns the existing channel.
func (c *Client) CreateChannel(ctx context.Context, ch types.ChatChannel, creator string) (types.ChatChannel, error) {
	body := map[string]any{
		"data": channelData{
			Name:        ch.Name,
			Team:        ch.Team,
			Members:     ch.Members,
			CreatedByID: creator,
		},
		"state": true,
	}
	var resp channelState
	if err := c.do(ctx, http.MethodPost, channelPath(ch)+"/query", nil, body, &resp); err != nil {
		return types.ChatChannel{}, fmt.Errorf("create channel %s: %w", ch.ID, err)
	}
	created := resp.chatChannel()
	if created.ID == "" {
		return ch, nil
	}
	return created, nil
}
