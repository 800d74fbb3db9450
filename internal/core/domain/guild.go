package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Channel types from the Discord channel object. Only guild text channels
// matter for invite creation.
const (
	ChannelTypeGuildText  = 0
	ChannelTypeGuildVoice = 2
)

// Permissions is a Discord permission bit set. The API serializes it as a
// decimal string, so it needs custom JSON handling.
type Permissions uint64

// Permission bits used by the provisioning workflow.
const (
	PermCreateInstantInvite Permissions = 1 << 0
	PermAdministrator       Permissions = 1 << 3

	// AllPermissions is what owners and administrators effectively hold.
	AllPermissions Permissions = ^Permissions(0)
)

func (p *Permissions) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse permissions %q: %w", s, err)
	}
	*p = Permissions(v)
	return nil
}

func (p Permissions) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(p), 10))), nil
}

// Guild is a Discord server.
type Guild struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	OwnerID         string `json:"owner_id"`
	SystemChannelID string `json:"system_channel_id"`
	Roles           []Role `json:"roles"`
}

// Role is a permission grant within a guild. The role whose ID equals the
// guild ID is the @everyone role.
type Role struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Permissions Permissions `json:"permissions"`
}

// Overwrite target types.
const (
	OverwriteRole   = 0
	OverwriteMember = 1
)

// PermissionOverwrite adjusts channel permissions for one role or member.
type PermissionOverwrite struct {
	ID    string      `json:"id"`
	Type  int         `json:"type"`
	Allow Permissions `json:"allow"`
	Deny  Permissions `json:"deny"`
}

// Channel is a guild channel or a direct-message channel.
type Channel struct {
	ID                   string                `json:"id"`
	GuildID              string                `json:"guild_id"`
	Name                 string                `json:"name"`
	Type                 int                   `json:"type"`
	PermissionOverwrites []PermissionOverwrite `json:"permission_overwrites"`
}

// Invite is a guild invite. Only the code survives into results; the URL is
// derived from it.
type Invite struct {
	Code string `json:"code"`
}

// URL returns the shareable invite link.
func (i Invite) URL() string {
	return "https://discord.gg/" + i.Code
}

// User is a Discord user.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
}

// Tag returns the user's display handle, name#discriminator when a
// discriminator is known.
func (u User) Tag() string {
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ID
}

// Member is a user's membership in one guild. GuildID is only populated on
// gateway payloads.
type Member struct {
	User    User     `json:"user"`
	GuildID string   `json:"guild_id"`
	Roles   []string `json:"roles"`
}

// ProvisionedServer is the per-server result record for one session.
// Immutable once emitted; collected in request order.
type ProvisionedServer struct {
	Name      string
	GuildID   string
	InviteURL string
}
