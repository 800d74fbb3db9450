package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
)

// Notification describes one provisioned server for webhook delivery.
type Notification struct {
	ServerName string
	InviteURL  string
	Message    string
}

// WebhookNotifier posts provisioning notifications to a Discord-compatible
// webhook. Delivery is fire-and-forget from the workflow's perspective: a
// failure never changes provisioning behavior, but it is surfaced to the
// session caller.
type WebhookNotifier struct {
	cfg        config.WebhookConfig
	httpClient *http.Client
	log        *slog.Logger
}

// NewWebhookNotifier creates a notifier for the given webhook config.
func NewWebhookNotifier(cfg config.WebhookConfig, log *slog.Logger) *WebhookNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookNotifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Notify delivers a single notification. Disabled or URL-less configs are a
// no-op.
func (n *WebhookNotifier) Notify(ctx context.Context, payload Notification) error {
	if !n.cfg.Enabled || n.cfg.URL == "" {
		return nil
	}

	body := map[string]any{
		"content": payload.Message,
		"embeds": []map[string]any{
			{
				"title":       "Discord Server Provisioned",
				"description": fmt.Sprintf("Server **%s** is ready.", payload.ServerName),
				"fields": []map[string]string{
					{"name": "Invite Link", "value": payload.InviteURL},
				},
			},
		},
	}
	if n.cfg.Username != "" {
		body["username"] = n.cfg.Username
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &domain.OperationError{Reason: fmt.Sprintf("webhook request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(resp.Body)
		reason := "webhook delivery failed"
		if len(text) > 0 {
			reason = fmt.Sprintf("webhook delivery failed: %s", text)
		}
		return &domain.OperationError{Reason: reason, Status: resp.StatusCode}
	}

	n.log.Debug("webhook notification delivered", "server", payload.ServerName)
	return nil
}

// Close releases idle webhook connections.
func (n *WebhookNotifier) Close() {
	n.httpClient.CloseIdleConnections()
}
