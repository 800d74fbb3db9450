package provision

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/retry"
	"github.com/vietddude/guildctl/internal/notify"
)

// Auth establishes the authenticated session from a raw credential.
type Auth interface {
	Login(ctx context.Context, rawToken string) (*domain.User, error)
}

// Notifier delivers per-server completion notifications.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
	Close()
}

// Deps carries the collaborators a Session composes.
type Deps struct {
	API      API
	Auth     Auth
	Events   EventSource // required only when the policy auto-grants admin
	Notifier Notifier    // nil disables notifications
	Exec     *retry.Executor
	Log      *slog.Logger

	// Conns are closed during teardown, after provisioning finishes or
	// fails.
	Conns []io.Closer
}

// Session is the facade for one end-to-end provisioning run: authenticate,
// optionally friend-request the target, provision each requested server in
// order, notify per completed server, and always tear down.
type Session struct {
	cfg      *config.SessionConfig
	deps     Deps
	invites  *InvitationManager
	pipeline *Pipeline
	log      *slog.Logger
}

// NewSession wires a session from configuration and collaborators.
func NewSession(cfg *config.SessionConfig, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	if deps.Exec == nil {
		deps.Exec = retry.New(retry.DefaultConfig, log)
	}

	var invites *InvitationManager
	if cfg.Invitation != nil {
		invites = NewInvitationManager(deps.API, deps.Events, deps.Exec, cfg.Invitation, log)
	}

	return &Session{
		cfg:      cfg,
		deps:     deps,
		invites:  invites,
		pipeline: NewPipeline(deps.API, deps.Exec, invites, log),
		log:      log,
	}
}

// Run executes the session. It returns every server provisioned before the
// first unrecovered error, in request order, plus that error if any.
// Teardown always runs.
func (s *Session) Run(ctx context.Context) (results []domain.ProvisionedServer, err error) {
	defer s.teardown()

	user, err := s.deps.Auth.Login(ctx, s.cfg.Token)
	if err != nil {
		return nil, err
	}
	s.pipeline.SetSelf(user.ID)

	if s.invites != nil {
		s.log.Info("sending friend request to target user")
		if _, err := s.invites.SendFriendRequest(ctx); err != nil {
			return nil, err
		}
	}

	for _, req := range s.cfg.Servers {
		result, err := s.pipeline.Provision(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, *result)

		if s.deps.Notifier != nil {
			n := notify.Notification{
				ServerName: result.Name,
				InviteURL:  result.InviteURL,
				Message:    fmt.Sprintf("Server '%s' has been provisioned successfully.", result.Name),
			}
			// The result is already recorded; a notification failure is
			// still reported to the caller.
			if err := s.deps.Notifier.Notify(ctx, n); err != nil {
				return results, err
			}
		}
	}

	s.log.Info("all requested servers have been created", "count", len(results))
	return results, nil
}

func (s *Session) teardown() {
	for _, conn := range s.deps.Conns {
		if err := conn.Close(); err != nil {
			s.log.Warn("error closing connection during teardown", "error", err)
		}
	}
	if s.deps.Notifier != nil {
		s.deps.Notifier.Close()
	}
}
