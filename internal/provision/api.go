package provision

import (
	"context"

	"github.com/vietddude/guildctl/internal/core/domain"
)

// API is the slice of the Discord REST surface the provisioning workflow
// uses. *discord.Client implements it; tests substitute fakes.
type API interface {
	CurrentUser(ctx context.Context) (*domain.User, error)
	CreateGuild(ctx context.Context, name string) (*domain.Guild, error)
	Guild(ctx context.Context, guildID string) (*domain.Guild, error)
	GuildChannels(ctx context.Context, guildID string) ([]domain.Channel, error)
	CreateChannel(ctx context.Context, guildID, name string) (*domain.Channel, error)
	CreateInvite(ctx context.Context, channelID string, maxAge, maxUses int, unique bool) (*domain.Invite, error)
	CreateRole(ctx context.Context, guildID, name string, permissions domain.Permissions) (*domain.Role, error)
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	GuildMember(ctx context.Context, guildID, userID string) (*domain.Member, error)
	User(ctx context.Context, userID string) (*domain.User, error)
	CreateRelationshipByID(ctx context.Context, userID string) (*domain.User, error)
	CreateRelationshipByTag(ctx context.Context, username, disc string) (*domain.User, error)
	CreateDM(ctx context.Context, recipientID string) (*domain.Channel, error)
	SendMessage(ctx context.Context, channelID, content string) error
}

// EventSource delivers member-join events for the join wait. The returned
// cancel func removes the subscription and must run on every exit path.
type EventSource interface {
	Subscribe(pred func(domain.MemberJoin) bool) (<-chan domain.MemberJoin, func())
}
