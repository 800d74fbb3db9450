package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vietddude/guildctl/internal/core/domain"
)

// maxServerNameLen bounds sanitized server names, slightly under Discord's
// 100-character guild name limit.
const maxServerNameLen = 95

// SessionConfig aggregates everything one provisioning run needs. The token
// is held in memory only and never persisted.
type SessionConfig struct {
	Token      string
	Servers    []ServerRequest
	Invitation *InvitationConfig
	Webhook    *WebhookConfig
	Logging    LoggingConfig
}

// ServerRequest is a single server creation request. Name is always
// sanitized.
type ServerRequest struct {
	Name string
}

// InvitationConfig describes the target user to invite. Exactly one of
// UserID or Username+Discriminator is set until the workflow resolves the
// target, after which all fields are known.
type InvitationConfig struct {
	RawIdentifier string
	UserID        string
	Username      string
	Discriminator string
	GrantAdmin    bool
}

// WebhookConfig configures optional per-server webhook notifications.
type WebhookConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

var (
	serverNameStrip = regexp.MustCompile(`[^\w\s-]`)
	numericID       = regexp.MustCompile(`^\d{5,}$`)
	discriminator   = regexp.MustCompile(`^\d{4}$`)
)

// SanitizeServerName strips disallowed characters from a requested server
// name and bounds its length. Sanitization is idempotent.
func SanitizeServerName(name string) (string, error) {
	cleaned := strings.TrimSpace(serverNameStrip.ReplaceAllString(name, ""))
	if cleaned == "" {
		return "", &domain.ConfigError{Reason: "server name cannot be empty after sanitization"}
	}
	if len(cleaned) > maxServerNameLen {
		cleaned = strings.TrimSpace(cleaned[:maxServerNameLen])
	}
	return cleaned, nil
}

// BuildServerRequests sanitizes raw names into server requests, preserving
// order.
func BuildServerRequests(rawNames []string) ([]ServerRequest, error) {
	servers := make([]ServerRequest, 0, len(rawNames))
	for _, raw := range rawNames {
		cleaned, err := SanitizeServerName(raw)
		if err != nil {
			return nil, err
		}
		servers = append(servers, ServerRequest{Name: cleaned})
	}
	if len(servers) == 0 {
		return nil, &domain.ConfigError{Reason: "at least one server name must be provided"}
	}
	return servers, nil
}

// ParseTargetUser interprets a target identifier as either a numeric user ID
// or a username#1234 pair.
func ParseTargetUser(identifier string) (*InvitationConfig, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, &domain.ConfigError{Reason: "target user identifier cannot be empty"}
	}

	if numericID.MatchString(identifier) {
		return &InvitationConfig{RawIdentifier: identifier, UserID: identifier}, nil
	}

	if strings.Contains(identifier, "#") {
		username, disc, _ := strings.Cut(identifier, "#")
		if username == "" || !discriminator.MatchString(disc) {
			return nil, &domain.ConfigError{
				Reason: "discord username must be in the format username#1234 with a 4-digit discriminator",
			}
		}
		return &InvitationConfig{
			RawIdentifier: identifier,
			Username:      username,
			Discriminator: disc,
		}, nil
	}

	return nil, &domain.ConfigError{
		Reason: "target user must be a numeric user ID or in the format username#1234",
	}
}

// Validate checks that the session configuration is complete enough to run.
func (c *SessionConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return &domain.ConfigError{Reason: "token cannot be empty"}
	}
	if len(c.Servers) == 0 {
		return &domain.ConfigError{Reason: "at least one server name must be provided"}
	}
	if c.Webhook != nil && c.Webhook.Enabled && strings.TrimSpace(c.Webhook.URL) == "" {
		return &domain.ConfigError{Reason: "webhook URL cannot be empty when webhook notifications are enabled"}
	}
	return nil
}

// DisplayTarget formats the invitation target for logs and prompts.
func (i *InvitationConfig) DisplayTarget() string {
	switch {
	case i.Username != "" && i.Discriminator != "":
		return fmt.Sprintf("%s#%s", i.Username, i.Discriminator)
	case i.Username != "":
		return i.Username
	case i.UserID != "":
		return i.UserID
	}
	return i.RawIdentifier
}
