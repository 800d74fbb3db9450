package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vietddude/guildctl/internal/core/config"
	"github.com/vietddude/guildctl/internal/core/domain"
)

const warningBanner = "========================================================================"

// CollectSessionConfig gathers a session configuration interactively. It
// performs only input validation; all remote work happens later.
func CollectSessionConfig(in io.Reader, out io.Writer) (*config.SessionConfig, error) {
	r := bufio.NewReader(in)

	printIntro(out)

	token, err := promptToken(r, out)
	if err != nil {
		return nil, err
	}

	servers, err := promptServers(r, out)
	if err != nil {
		return nil, err
	}

	invitation, err := promptInvitation(r, out)
	if err != nil {
		return nil, err
	}

	webhook, err := promptWebhook(r, out)
	if err != nil {
		return nil, err
	}

	cfg := &config.SessionConfig{
		Token:      token,
		Servers:    servers,
		Invitation: invitation,
		Webhook:    webhook,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printIntro(out io.Writer) {
	fmt.Fprintln(out, warningBanner)
	fmt.Fprintln(out, "IMPORTANT WARNING")
	fmt.Fprintln(out, "This tool automates actions on a Discord user account using your token.")
	fmt.Fprintln(out, "Using user tokens with automation is against Discord's Terms of Service.")
	fmt.Fprintln(out, "Proceed at your own risk. Never share your token and keep it secure.")
	fmt.Fprintln(out, warningBanner)
}

func promptToken(r *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprintln(out, "Your token is only held in memory for this session and never persisted.")
	for {
		line, err := readLine(r, out, "Enter your Discord token: ")
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		fmt.Fprintln(out, "Token cannot be empty. Please try again.")
	}
}

func promptServers(r *bufio.Reader, out io.Writer) ([]config.ServerRequest, error) {
	for {
		line, err := readLine(r, out, "Enter the server name(s) to create (comma-separated for multiple): ")
		if err != nil {
			return nil, err
		}

		var names []string
		for _, name := range strings.Split(line, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			fmt.Fprintln(out, "You must provide at least one server name.")
			continue
		}

		servers, err := config.BuildServerRequests(names)
		if err != nil {
			var cfgErr *domain.ConfigError
			if errors.As(err, &cfgErr) {
				fmt.Fprintf(out, "Error: %s\n", cfgErr.Reason)
				continue
			}
			return nil, err
		}
		return servers, nil
	}
}

func promptInvitation(r *bufio.Reader, out io.Writer) (*config.InvitationConfig, error) {
	fmt.Fprintln(out, "Provide the target user's Discord ID or username (username#1234) to send a friend request.")
	fmt.Fprintln(out, "Leave blank to skip inviting a user.")

	var invitation *config.InvitationConfig
	for {
		line, err := readLine(r, out, "Target user: ")
		if err != nil {
			return nil, err
		}
		if line == "" {
			return nil, nil
		}

		invitation, err = config.ParseTargetUser(line)
		if err != nil {
			var cfgErr *domain.ConfigError
			if errors.As(err, &cfgErr) {
				fmt.Fprintf(out, "Error: %s\n", cfgErr.Reason)
				continue
			}
			return nil, err
		}
		break
	}

	grant, err := promptYesNo(r, out, "Grant administrator permissions to the invited user automatically?", true)
	if err != nil {
		return nil, err
	}
	invitation.GrantAdmin = grant
	return invitation, nil
}

func promptWebhook(r *bufio.Reader, out io.Writer) (*config.WebhookConfig, error) {
	enabled, err := promptYesNo(r, out, "Send webhook notifications when provisioning completes?", false)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}

	url, err := readLine(r, out, "Enter the webhook URL: ")
	if err != nil {
		return nil, err
	}
	if url == "" {
		fmt.Fprintln(out, "Webhook URL cannot be empty. Webhook notifications will be disabled.")
		return nil, nil
	}

	username, err := readLine(r, out, "Optional: enter a custom webhook username (leave blank to skip): ")
	if err != nil {
		return nil, err
	}
	return &config.WebhookConfig{Enabled: true, URL: url, Username: username}, nil
}

func promptYesNo(r *bufio.Reader, out io.Writer, prompt string, def bool) (bool, error) {
	suffix := " [y/N]: "
	if def {
		suffix = " [Y/n]: "
	}
	for {
		line, err := readLine(r, out, prompt+suffix)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(out, "Please enter 'y' or 'n'.")
	}
}

func readLine(r *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
