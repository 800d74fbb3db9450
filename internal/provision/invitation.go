package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/retry"
)

// DefaultJoinTimeout bounds how long the workflow waits for the target user
// to join a server before giving up on the admin grant.
const DefaultJoinTimeout = 10 * time.Minute

// InvitationManager drives the friend-request, DM-delivery, and admin-grant
// steps of the workflow. It owns the per-session admin role registry and the
// mutable target resolution; both are scoped to one session, never global.
type InvitationManager struct {
	api        API
	events     EventSource
	exec       *retry.Executor
	invitation *config.InvitationConfig
	log        *slog.Logger

	// adminRoles maps guild ID to the prepared admin role. Session
	// execution is sequential, so plain map access is safe.
	adminRoles map[string]*domain.Role
}

// NewInvitationManager wires the workflow for one invitation policy.
func NewInvitationManager(api API, events EventSource, exec *retry.Executor, invitation *config.InvitationConfig, log *slog.Logger) *InvitationManager {
	if log == nil {
		log = slog.Default()
	}
	return &InvitationManager{
		api:        api,
		events:     events,
		exec:       exec,
		invitation: invitation,
		log:        log,
		adminRoles: make(map[string]*domain.Role),
	}
}

// ShouldGrantAdmin reports whether the invited user gets the admin role
// automatically on join.
func (m *InvitationManager) ShouldGrantAdmin() bool {
	return m.invitation.GrantAdmin
}

// TargetUserID returns the resolved target user ID, empty until resolution.
func (m *InvitationManager) TargetUserID() string {
	return m.invitation.UserID
}

// SendFriendRequest proposes the relationship and resolves the target user.
// After success the invitation config carries the confirmed ID, username,
// and discriminator.
func (m *InvitationManager) SendFriendRequest(ctx context.Context) (*domain.User, error) {
	inv := m.invitation

	user, err := retry.DoValue(ctx, m.exec, func(ctx context.Context) (*domain.User, error) {
		if inv.UserID != "" {
			return m.api.CreateRelationshipByID(ctx, inv.UserID)
		}
		if inv.Username == "" || inv.Discriminator == "" {
			return nil, &domain.OperationError{
				Reason: "username and discriminator are required to send a friend request",
			}
		}
		return m.api.CreateRelationshipByTag(ctx, inv.Username, inv.Discriminator)
	})
	if err != nil {
		return nil, wrapOperation("failed to send friend request", err)
	}

	if user == nil {
		// The relationship endpoint answered with an empty body. Keyed by
		// ID the target can still be resolved with a direct fetch; keyed by
		// tag there is nothing to fetch by.
		if inv.UserID == "" {
			return nil, &domain.OperationError{
				Reason: "unable to resolve user information after sending the friend request",
			}
		}
		user, err = retry.DoValue(ctx, m.exec, func(ctx context.Context) (*domain.User, error) {
			return m.api.User(ctx, inv.UserID)
		})
		if err != nil {
			return nil, wrapOperation("failed to resolve target user after friend request", err)
		}
	}

	inv.UserID = user.ID
	if user.Username != "" {
		inv.Username = user.Username
	}
	if user.Discriminator != "" {
		inv.Discriminator = user.Discriminator
	}

	m.log.Info("friend request sent", "target", inv.DisplayTarget())
	return user, nil
}

// CreateInviteAndDM fetches the resolved target and delivers the invite link
// over a direct message.
func (m *InvitationManager) CreateInviteAndDM(ctx context.Context, guild *domain.Guild, invite *domain.Invite) error {
	if m.invitation.UserID == "" {
		return &domain.OperationError{Reason: "target user ID is required before sending an invite"}
	}

	user, err := retry.DoValue(ctx, m.exec, func(ctx context.Context) (*domain.User, error) {
		return m.api.User(ctx, m.invitation.UserID)
	})
	if err != nil {
		return wrapOperation("failed to fetch target user for DM", err)
	}

	message := fmt.Sprintf(
		"Hello %s!\nYou have been invited to join **%s**.\nUse this invite link to join: %s",
		user.Username, guild.Name, invite.URL(),
	)

	dm, err := retry.DoValue(ctx, m.exec, func(ctx context.Context) (*domain.Channel, error) {
		return m.api.CreateDM(ctx, user.ID)
	})
	if err != nil {
		return wrapOperation("failed to open DM channel", err)
	}

	if err := m.exec.Do(ctx, func(ctx context.Context) error {
		return m.api.SendMessage(ctx, dm.ID, message)
	}); err != nil {
		return wrapOperation("failed to send invite via DM", err)
	}

	m.log.Info("invite link sent via DM", "target", user.Tag(), "guild", guild.Name)
	return nil
}

// RegisterAdminRole records the prepared role for a guild. No-op when the
// policy does not grant admin automatically.
func (m *InvitationManager) RegisterAdminRole(guild *domain.Guild, role *domain.Role) {
	if !m.invitation.GrantAdmin {
		return
	}
	m.adminRoles[guild.ID] = role
	m.log.Info("administrator role prepared", "role", role.Name, "guild", guild.Name)
}

// MonitorMemberJoin waits for the target user to join the guild and grants
// the registered admin role. A timeout is a soft failure: it logs a warning
// and returns no error, leaving the role registered but ungranted. When the
// target is already a member the grant happens immediately and no
// subscription is created.
func (m *InvitationManager) MonitorMemberJoin(ctx context.Context, guild *domain.Guild, timeout time.Duration) (*domain.Member, error) {
	if !m.invitation.GrantAdmin || m.invitation.UserID == "" {
		return nil, nil
	}

	existing, err := m.api.GuildMember(ctx, guild.ID, m.invitation.UserID)
	if err != nil {
		return nil, wrapOperation("failed to check guild membership", err)
	}
	if existing != nil {
		if err := m.grantAdmin(ctx, guild.ID, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	m.log.Info("waiting for target to join",
		"target", m.invitation.DisplayTarget(),
		"guild", guild.Name,
		"timeout", timeout,
	)

	events, cancel := m.events.Subscribe(func(ev domain.MemberJoin) bool {
		return ev.GuildID == guild.ID && ev.Member.User.ID == m.invitation.UserID
	})
	defer cancel()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-events:
		if err := m.grantAdmin(ctx, guild.ID, &ev.Member); err != nil {
			return nil, err
		}
		return &ev.Member, nil
	case <-timer.C:
		m.log.Warn("target did not join before timeout",
			"target", m.invitation.RawIdentifier,
			"guild", guild.Name,
		)
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *InvitationManager) grantAdmin(ctx context.Context, guildID string, member *domain.Member) error {
	role := m.adminRoles[guildID]
	if role == nil {
		return nil
	}

	if err := m.exec.Do(ctx, func(ctx context.Context) error {
		return m.api.AddMemberRole(ctx, guildID, member.User.ID, role.ID)
	}); err != nil {
		return wrapOperation("failed to grant administrator permissions", err)
	}

	m.log.Info("administrator permissions granted", "target", member.User.Tag())
	return nil
}

// wrapOperation turns a transport error into an OperationError carrying the
// HTTP status. Typed errors pass through unchanged.
func wrapOperation(reason string, err error) error {
	switch err.(type) {
	case *domain.OperationError, *domain.AuthError, *domain.RateLimitExhaustedError, *domain.ConfigError:
		return err
	}
	if status := domain.StatusOf(err); status != 0 {
		return &domain.OperationError{Reason: reason, Status: status}
	}
	return &domain.OperationError{Reason: fmt.Sprintf("%s: %v", reason, err)}
}
