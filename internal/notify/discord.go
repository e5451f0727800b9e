package notify

import (
	"context"
	"fmt"
	"net/http"
)

// Discord rejects message content above this many characters.
const discordMaxContent = 2000

// DiscordSender posts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSender(webhookURL string, client *http.Client) *DiscordSender {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &DiscordSender{webhookURL: webhookURL, client: client}
}

func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := fmt.Sprintf("**%s**\n%s", title, message)
	if r := []rune(content); len(r) > discordMaxContent {
		content = string(r[:discordMaxContent-1]) + "…"
	}
	if err := postJSON(ctx, d.client, d.webhookURL, map[string]string{"content": content}); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }
