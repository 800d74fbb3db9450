package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// TokenEnvVar is consulted when the config file carries no token.
const TokenEnvVar = "GUILDCTL_TOKEN"

// fileConfig is the raw YAML shape before sanitization and target parsing.
type fileConfig struct {
	Token      string   `yaml:"token"`
	Servers    []string `yaml:"servers"`
	Invitation *struct {
		Target     string `yaml:"target"`
		GrantAdmin *bool  `yaml:"grant_admin"`
	} `yaml:"invitation"`
	Webhook *WebhookConfig `yaml:"webhook"`
	Logging LoggingConfig  `yaml:"logging"`
}

// Load reads a session configuration from a YAML file. Environment variables
// in the file content are expanded before parsing, so tokens can be supplied
// as ${GUILDCTL_TOKEN}.
func Load(path string) (*SessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw fileConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &SessionConfig{
		Token:   raw.Token,
		Webhook: raw.Webhook,
		Logging: raw.Logging,
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv(TokenEnvVar)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	cfg.Servers, err = BuildServerRequests(raw.Servers)
	if err != nil {
		return nil, err
	}

	if raw.Invitation != nil && raw.Invitation.Target != "" {
		invitation, err := ParseTargetUser(raw.Invitation.Target)
		if err != nil {
			return nil, err
		}
		// Admin grant defaults to on, matching the interactive prompt.
		invitation.GrantAdmin = raw.Invitation.GrantAdmin == nil || *raw.Invitation.GrantAdmin
		cfg.Invitation = invitation
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
