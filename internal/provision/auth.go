package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/discord"
)

// authClient is the part of the REST client the authenticator drives.
type authClient interface {
	SetToken(token string)
	CurrentUser(ctx context.Context) (*domain.User, error)
}

// gatewayConnector establishes the event stream once the credential is
// validated.
type gatewayConnector interface {
	Connect(ctx context.Context, token string) error
}

// Authenticator normalizes a raw credential, optionally probes the identity
// endpoint for diagnostics, and performs the real login.
type Authenticator struct {
	client    authClient
	gateway   gatewayConnector // nil when the session needs no events
	probeHTTP *http.Client
	probeURL  string
	log       *slog.Logger
}

// NewAuthenticator creates an authenticator over a REST client. The probe
// uses its own short-timeout HTTP client so a slow diagnostic cannot stall
// login.
func NewAuthenticator(client authClient, gateway gatewayConnector, log *slog.Logger) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{
		client:    client,
		gateway:   gateway,
		probeHTTP: &http.Client{Timeout: 15 * time.Second},
		probeURL:  discord.DefaultBaseURL + "/users/@me",
		log:       log,
	}
}

// Login normalizes and validates the credential, attaches it to the client,
// and confirms the session identity. Failures map to *domain.AuthError.
func (a *Authenticator) Login(ctx context.Context, rawToken string) (*domain.User, error) {
	token, notes := discord.NormalizeToken(rawToken)
	for _, note := range notes {
		a.log.Debug("token normalization", "applied", note)
	}
	if token == "" {
		return nil, &domain.AuthError{Reason: "token is empty after normalization"}
	}

	a.probe(ctx, token)

	a.client.SetToken(token)
	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		return nil, mapLoginError(err)
	}

	if a.gateway != nil {
		if err := a.gateway.Connect(ctx, token); err != nil {
			return nil, &domain.AuthError{Reason: fmt.Sprintf("failed to establish event connection: %v", err)}
		}
	}

	a.log.Info("authenticated", "user", user.Tag())
	return user, nil
}

// probe hits the identity endpoint purely for diagnostics. Its outcome is
// logged and never gates login.
func (a *Authenticator) probe(ctx context.Context, token string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.probeURL, nil)
	if err != nil {
		a.log.Debug("identity probe skipped", "error", err)
		return
	}
	req.Header.Set("Authorization", token)

	resp, err := a.probeHTTP.Do(req)
	if err != nil {
		a.log.Debug("identity probe failed", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.log.Debug("identity probe returned non-200", "status", resp.StatusCode)
		return
	}
	a.log.Debug("identity probe succeeded")
}

// mapLoginError translates a login failure into an AuthError with a
// human-readable reason.
func mapLoginError(err error) error {
	var api *domain.APIError
	if !errors.As(err, &api) {
		return &domain.AuthError{Reason: fmt.Sprintf("login failed: %v", err)}
	}

	switch api.Status {
	case http.StatusUnauthorized:
		return &domain.AuthError{Reason: "the token was rejected, verify it and retry"}
	case http.StatusForbidden:
		return &domain.AuthError{Reason: "access was denied, the account may require verification"}
	case http.StatusTooManyRequests:
		return &domain.AuthError{Reason: loginWaitMessage(api.RetryAfter)}
	default:
		reason := fmt.Sprintf("login failed with status %d", api.Status)
		if api.Body != "" {
			reason = fmt.Sprintf("%s: %s", reason, api.Body)
		}
		return &domain.AuthError{Reason: reason}
	}
}

func loginWaitMessage(retryAfter time.Duration) string {
	if retryAfter >= time.Second {
		return fmt.Sprintf("login was rate limited, retry in %d seconds", int(retryAfter.Seconds()))
	}
	return "login was rate limited, retry in a moment"
}
