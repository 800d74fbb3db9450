package discord

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/vietddude/guildctl/internal/core/domain"
)

// CurrentUser fetches the identity the attached token authenticates as.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateGuild creates a new guild owned by the current user.
func (c *Client) CreateGuild(ctx context.Context, name string) (*domain.Guild, error) {
	var g domain.Guild
	payload := map[string]any{"name": name}
	if err := c.do(ctx, http.MethodPost, "/guilds", payload, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Guild fetches a guild by ID.
func (c *Client) Guild(ctx context.Context, guildID string) (*domain.Guild, error) {
	var g domain.Guild
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GuildChannels lists a guild's channels.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]domain.Channel, error) {
	var channels []domain.Channel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateChannel creates a text channel in a guild.
func (c *Client) CreateChannel(ctx context.Context, guildID, name string) (*domain.Channel, error) {
	var ch domain.Channel
	payload := map[string]any{"name": name, "type": domain.ChannelTypeGuildText}
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/channels", payload, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// CreateInvite mints an invite on a channel. maxUses of zero means
// unlimited; unique forces a fresh code even when an equivalent invite
// exists.
func (c *Client) CreateInvite(ctx context.Context, channelID string, maxAge, maxUses int, unique bool) (*domain.Invite, error) {
	var inv domain.Invite
	payload := map[string]any{
		"max_age":  maxAge,
		"max_uses": maxUses,
		"unique":   unique,
	}
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/invites", payload, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateRole creates a guild role with the given permission bits.
func (c *Client) CreateRole(ctx context.Context, guildID, name string, permissions domain.Permissions) (*domain.Role, error) {
	var role domain.Role
	payload := map[string]any{"name": name, "permissions": permissions}
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/roles", payload, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// AddMemberRole assigns a role to a guild member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, nil, nil)
}

// GuildMember fetches a user's membership in a guild. A 404 means the user
// is not a member and returns nil without error.
func (c *Client) GuildMember(ctx context.Context, guildID, userID string) (*domain.Member, error) {
	var m domain.Member
	err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, nil, &m)
	if err != nil {
		if domain.StatusOf(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// User fetches a user by ID.
func (c *Client) User(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateRelationshipByID sends a friend request keyed by user ID. The
// response body may be empty, in which case the returned user is nil and the
// caller resolves the target with a follow-up fetch.
func (c *Client) CreateRelationshipByID(ctx context.Context, userID string) (*domain.User, error) {
	var raw json.RawMessage
	payload := map[string]any{"type": 1}
	if err := c.do(ctx, http.MethodPut, "/users/@me/relationships/"+userID, payload, &raw); err != nil {
		return nil, err
	}
	return relationshipUser(raw)
}

// CreateRelationshipByTag sends a friend request keyed by
// username+discriminator.
func (c *Client) CreateRelationshipByTag(ctx context.Context, username, disc string) (*domain.User, error) {
	var raw json.RawMessage
	payload := map[string]any{"username": username, "discriminator": disc}
	if err := c.do(ctx, http.MethodPost, "/users/@me/relationships", payload, &raw); err != nil {
		return nil, err
	}
	return relationshipUser(raw)
}

// relationshipUser extracts the confirmed user from a relationship response.
// The API returns either a wrapper with a user field, a bare user object, or
// nothing at all.
func relationshipUser(raw json.RawMessage) (*domain.User, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil && wrapped.User.ID != "" {
		return wrapped.User, nil
	}

	var u domain.User
	if err := json.Unmarshal(raw, &u); err == nil && u.ID != "" {
		return &u, nil
	}

	return nil, &domain.OperationError{Reason: "unexpected response while sending friend request"}
}

// CreateDM opens (or reuses) a direct-message channel with a user.
func (c *Client) CreateDM(ctx context.Context, recipientID string) (*domain.Channel, error) {
	var ch domain.Channel
	payload := map[string]any{"recipient_id": recipientID}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", payload, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// SendMessage posts a message to a channel.
func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	payload := map[string]any{
		"content": content,
		"nonce":   uuid.NewString(),
	}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, nil)
}
