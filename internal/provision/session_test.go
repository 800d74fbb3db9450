package provision

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/notify"
)

type fakeAuth struct {
	user *domain.User
	err  error
}

func (f *fakeAuth) Login(ctx context.Context, rawToken string) (*domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type fakeNotifier struct {
	sent   []notify.Notification
	err    error
	closed bool
}

func (f *fakeNotifier) Notify(ctx context.Context, n notify.Notification) error {
	f.sent = append(f.sent, n)
	return f.err
}

func (f *fakeNotifier) Close() { f.closed = true }

type trackedCloser struct{ closed bool }

func (c *trackedCloser) Close() error {
	c.closed = true
	return nil
}

func sessionConfig(t *testing.T, servers []string, inv *config.InvitationConfig) *config.SessionConfig {
	t.Helper()
	reqs, err := config.BuildServerRequests(servers)
	if err != nil {
		t.Fatal(err)
	}
	return &config.SessionConfig{Token: "tok", Servers: reqs, Invitation: inv}
}

func TestSessionRun_PlainServers(t *testing.T) {
	api := newFakeAPI()
	api.systemChan = true
	cfg := sessionConfig(t, []string{"Alpha Server", "Beta!! Server"}, nil)
	s := NewSession(cfg, Deps{
		API:  api,
		Auth: &fakeAuth{user: &domain.User{ID: "self"}},
		Exec: testExecutor(),
	})

	results, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Name != "Alpha Server" || results[1].Name != "Beta Server" {
		t.Errorf("results = %+v, want request order with sanitized names", results)
	}
	for _, name := range []string{"CreateRelationshipByID", "CreateRelationshipByTag", "CreateRole", "AddMemberRole"} {
		if api.called(name) != 0 {
			t.Errorf("%s called %d times, want 0", name, api.called(name))
		}
	}
}

func TestSessionRun_AutoGrantExistingMember(t *testing.T) {
	api := newFakeAPI()
	api.systemChan = true
	api.relationshipResp = &domain.User{ID: "777", Username: "kai", Discriminator: "1234"}
	api.members["g1/777"] = &domain.Member{User: domain.User{ID: "777", Username: "kai"}}
	events := newCountingEvents()
	cfg := sessionConfig(t, []string{"Alpha"}, &config.InvitationConfig{RawIdentifier: "777", UserID: "777", GrantAdmin: true})
	s := NewSession(cfg, Deps{
		API:    api,
		Auth:   &fakeAuth{user: &domain.User{ID: "self"}},
		Events: events,
		Exec:   testExecutor(),
	})

	results, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if api.called("CreateRelationshipByID") != 1 {
		t.Errorf("friend request sent %d times, want 1", api.called("CreateRelationshipByID"))
	}
	if len(api.grantedRoles) != 1 {
		t.Errorf("grantedRoles = %v, want one grant", api.grantedRoles)
	}
	if events.subscribeCalls != 0 {
		t.Errorf("subscribeCalls = %d, want 0 for an existing member", events.subscribeCalls)
	}
}

func TestSessionRun_JoinTimeoutStillProvisions(t *testing.T) {
	api := newFakeAPI()
	api.systemChan = true
	api.relationshipResp = &domain.User{ID: "777", Username: "kai", Discriminator: "1234"}
	events := newCountingEvents()
	cfg := sessionConfig(t, []string{"Alpha"}, &config.InvitationConfig{RawIdentifier: "777", UserID: "777", GrantAdmin: true})
	s := NewSession(cfg, Deps{
		API:    api,
		Auth:   &fakeAuth{user: &domain.User{ID: "self"}},
		Events: events,
		Exec:   testExecutor(),
	})

	// The target never joins; the join wait must expire without failing the
	// run.
	s.pipeline.joinTimeout = 20 * time.Millisecond

	results, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: the server is provisioned either way", len(results))
	}
	if len(api.grantedRoles) != 0 {
		t.Errorf("grantedRoles = %v, want none", api.grantedRoles)
	}
}

func TestSessionRun_NotifyFailureAfterResult(t *testing.T) {
	api := newFakeAPI()
	api.systemChan = true
	notifier := &fakeNotifier{err: errors.New("hook down")}
	cfg := sessionConfig(t, []string{"Alpha", "Beta"}, nil)
	s := NewSession(cfg, Deps{
		API:      api,
		Auth:     &fakeAuth{user: &domain.User{ID: "self"}},
		Notifier: notifier,
		Exec:     testExecutor(),
	})

	results, err := s.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil error, want the notification failure")
	}
	if len(results) != 1 || results[0].Name != "Alpha" {
		t.Errorf("results = %+v, want the provisioned server recorded before the failure", results)
	}
	if !notifier.closed {
		t.Error("notifier not closed during teardown")
	}
}

func TestSessionRun_NotifiesPerServer(t *testing.T) {
	api := newFakeAPI()
	api.systemChan = true
	notifier := &fakeNotifier{}
	cfg := sessionConfig(t, []string{"Alpha", "Beta"}, nil)
	s := NewSession(cfg, Deps{
		API:      api,
		Auth:     &fakeAuth{user: &domain.User{ID: "self"}},
		Notifier: notifier,
		Exec:     testExecutor(),
	})

	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(notifier.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(notifier.sent))
	}
	if notifier.sent[0].ServerName != "Alpha" || notifier.sent[1].ServerName != "Beta" {
		t.Errorf("notifications = %+v", notifier.sent)
	}
}

func TestSessionRun_TeardownOnLoginFailure(t *testing.T) {
	conn := &trackedCloser{}
	notifier := &fakeNotifier{}
	cfg := sessionConfig(t, []string{"Alpha"}, nil)
	s := NewSession(cfg, Deps{
		API:      newFakeAPI(),
		Auth:     &fakeAuth{err: &domain.AuthError{Reason: "token was rejected"}},
		Notifier: notifier,
		Exec:     testExecutor(),
		Conns:    []io.Closer{conn},
	})

	_, err := s.Run(context.Background())
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if !conn.closed {
		t.Error("connection not closed during teardown")
	}
	if !notifier.closed {
		t.Error("notifier not closed during teardown")
	}
}

func TestSessionRun_StopsOnFirstFailure(t *testing.T) {
	api := newFakeAPI()
	api.systemChan = true
	cfg := sessionConfig(t, []string{"Alpha", "Beta", "Gamma"}, nil)
	s := NewSession(cfg, Deps{
		API:  &failAfterAPI{fakeAPI: api, allow: 1},
		Auth: &fakeAuth{user: &domain.User{ID: "self"}},
		Exec: testExecutor(),
	})

	results, err := s.Run(context.Background())
	if err == nil {
		t.Fatal("Run() = nil error, want failure on the second server")
	}
	if len(results) != 1 || results[0].Name != "Alpha" {
		t.Errorf("results = %+v, want only the first server", results)
	}
}

// failAfterAPI lets allow guild creations succeed, then denies the rest.
type failAfterAPI struct {
	*fakeAPI
	allow int
}

func (f *failAfterAPI) CreateGuild(ctx context.Context, name string) (*domain.Guild, error) {
	if len(f.createdGuilds) >= f.allow {
		return nil, &domain.APIError{Status: 403, Body: "max guilds"}
	}
	return f.fakeAPI.CreateGuild(ctx, name)
}
