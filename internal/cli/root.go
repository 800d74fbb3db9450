package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
	"github.com/vietddude/guildctl/internal/infra/discord"
	"github.com/vietddude/guildctl/internal/notify"
	"github.com/vietddude/guildctl/internal/provision"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "guildctl",
	Short: "Discord server provisioning tool",
	Long: `guildctl creates Discord servers, generates invite links, and can
friend-request a target user, DM them the invites, and grant them an
administrator role once they join.`,
	Run: runProvision,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file; omit for interactive prompts")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func runProvision(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	var cfg *config.SessionConfig
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = CollectSessionConfig(os.Stdin, os.Stdout)
	}
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := discord.NewClient(slog.Default())

	var events provision.EventSource
	var gateway *discord.Gateway
	conns := []io.Closer{client}
	if cfg.Invitation != nil && cfg.Invitation.GrantAdmin {
		gateway = discord.NewGateway(slog.Default())
		events = gateway
		conns = append(conns, gateway)
	}

	var notifier provision.Notifier
	if cfg.Webhook != nil && cfg.Webhook.Enabled {
		notifier = notify.NewWebhookNotifier(*cfg.Webhook, slog.Default())
	}

	var auth *provision.Authenticator
	if gateway != nil {
		auth = provision.NewAuthenticator(client, gateway, slog.Default())
	} else {
		auth = provision.NewAuthenticator(client, nil, slog.Default())
	}

	session := provision.NewSession(cfg, provision.Deps{
		API:      client,
		Auth:     auth,
		Events:   events,
		Notifier: notifier,
		Log:      slog.Default(),
		Conns:    conns,
	})

	results, err := session.Run(ctx)
	if err != nil {
		reportError(err)
		PrintSummary(os.Stdout, results)
		os.Exit(1)
	}

	PrintSummary(os.Stdout, results)
	if isDebug {
		logMetrics()
	}
}

func reportError(err error) {
	var (
		cfgErr  *domain.ConfigError
		authErr *domain.AuthError
		opErr   *domain.OperationError
		rlErr   *domain.RateLimitExhaustedError
	)
	switch {
	case errors.As(err, &cfgErr):
		slog.Error("Invalid configuration", "error", cfgErr.Reason)
	case errors.As(err, &authErr):
		slog.Error("Authentication failed", "error", authErr.Reason)
	case errors.As(err, &rlErr):
		slog.Error("Rate limit budget exhausted", "attempts", rlErr.Attempts, "error", rlErr.Last)
	case errors.As(err, &opErr):
		slog.Error("Provisioning failed", "error", opErr.Error())
	case errors.Is(err, context.Canceled):
		slog.Warn("Operation cancelled")
	default:
		slog.Error("An unexpected error occurred", "error", err)
	}
}

// logMetrics dumps the session counters at debug level.
func logMetrics() {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil && c.GetValue() > 0 {
				slog.Debug("session metric", "name", mf.GetName(), "value", c.GetValue())
			}
		}
	}
}
