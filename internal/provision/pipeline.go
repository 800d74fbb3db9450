package provision

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/metrics"
	"github.com/vietddude/guildctl/internal/infra/retry"
)

// Invite parameters: links live a day, never run out of uses, and are
// always minted fresh.
const (
	inviteMaxAge  = 86400
	inviteMaxUses = 0

	adminRoleName      = "AutoAdmin"
	defaultChannelName = "general"
)

// Pipeline provisions one server at a time: create the guild, pick an
// invite-capable channel, mint the invite, then hand off to the invitation
// workflow when one is configured. Failures abort only the current server
// and are never rolled back.
type Pipeline struct {
	api     API
	exec    *retry.Executor
	invites *InvitationManager // nil when no invitation policy is set
	log     *slog.Logger

	joinTimeout time.Duration

	// selfID is the authenticated user, set after login. Needed for
	// channel permission checks.
	selfID string
}

// NewPipeline creates a pipeline. invites may be nil.
func NewPipeline(api API, exec *retry.Executor, invites *InvitationManager, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{api: api, exec: exec, invites: invites, log: log, joinTimeout: DefaultJoinTimeout}
}

// SetSelf records the authenticated user's ID.
func (p *Pipeline) SetSelf(userID string) {
	p.selfID = userID
}

// Provision runs the full state machine for one server request.
func (p *Pipeline) Provision(ctx context.Context, req config.ServerRequest) (*domain.ProvisionedServer, error) {
	p.log.Info("creating server", "name", req.Name)

	guild, err := retry.DoValue(ctx, p.exec, func(ctx context.Context) (*domain.Guild, error) {
		created, err := p.api.CreateGuild(ctx, req.Name)
		if err != nil {
			return nil, err
		}
		return p.api.Guild(ctx, created.ID)
	})
	if err != nil {
		if domain.StatusOf(err) == http.StatusForbidden {
			return nil, &domain.OperationError{Reason: "discord denied the guild creation request", Status: http.StatusForbidden}
		}
		return nil, wrapOperation("failed to create the server", err)
	}
	p.log.Info("server created", "name", guild.Name, "guild_id", guild.ID)

	channel, err := p.inviteChannel(ctx, guild)
	if err != nil {
		return nil, err
	}

	invite, err := retry.DoValue(ctx, p.exec, func(ctx context.Context) (*domain.Invite, error) {
		return p.api.CreateInvite(ctx, channel.ID, inviteMaxAge, inviteMaxUses, true)
	})
	if err != nil {
		return nil, wrapOperation("failed to create invite link", err)
	}
	p.log.Info("invite link ready", "guild", guild.Name, "invite", invite.URL())

	if p.invites != nil {
		if p.invites.ShouldGrantAdmin() {
			role, err := retry.DoValue(ctx, p.exec, func(ctx context.Context) (*domain.Role, error) {
				return p.api.CreateRole(ctx, guild.ID, adminRoleName, domain.PermAdministrator)
			})
			if err != nil {
				return nil, wrapOperation("failed to create administrator role", err)
			}
			p.invites.RegisterAdminRole(guild, role)
		}

		if err := p.invites.CreateInviteAndDM(ctx, guild, invite); err != nil {
			return nil, err
		}

		if p.invites.ShouldGrantAdmin() {
			if _, err := p.invites.MonitorMemberJoin(ctx, guild, p.joinTimeout); err != nil {
				return nil, err
			}
		}
	}

	metrics.ServersProvisioned.Inc()
	return &domain.ProvisionedServer{
		Name:      guild.Name,
		GuildID:   guild.ID,
		InviteURL: invite.URL(),
	}, nil
}

// inviteChannel selects the channel invites are created on: the guild's
// system channel when present, else the first text channel where the
// session user can create invites, else a freshly created default channel.
func (p *Pipeline) inviteChannel(ctx context.Context, guild *domain.Guild) (*domain.Channel, error) {
	channels, err := p.api.GuildChannels(ctx, guild.ID)
	if err != nil {
		return nil, wrapOperation("failed to list server channels", err)
	}

	if guild.SystemChannelID != "" {
		for i := range channels {
			if channels[i].ID == guild.SystemChannelID {
				return &channels[i], nil
			}
		}
	}

	for i := range channels {
		ch := &channels[i]
		if ch.Type != domain.ChannelTypeGuildText {
			continue
		}
		perms := domain.EffectivePermissions(guild, ch, p.selfID, nil)
		if perms&domain.PermCreateInstantInvite != 0 {
			return ch, nil
		}
	}

	p.log.Info("creating default text channel for invites", "guild", guild.Name)
	channel, err := retry.DoValue(ctx, p.exec, func(ctx context.Context) (*domain.Channel, error) {
		return p.api.CreateChannel(ctx, guild.ID, defaultChannelName)
	})
	if err != nil {
		return nil, wrapOperation("failed to create default channel", err)
	}
	return channel, nil
}
