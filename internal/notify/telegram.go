package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts through the Bot API sendMessage method.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender targets the public Bot API when apiBase is empty.
func NewTelegramSender(apiBase, token, chatID string, client *http.Client) *TelegramSender {
	if apiBase == "" {
		apiBase = telegramAPI
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &TelegramSender{
		apiBase: strings.TrimRight(apiBase, "/"),
		token:   token,
		chatID:  chatID,
		client:  client,
	}
}

func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     title + "\n" + message,
		"disable_web_page_preview": true,
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	if err := postJSON(ctx, t.client, url, payload); err != nil {
		// The request URL carries the bot token, keep it out of the error.
		return fmt.Errorf("telegram: %s", strings.ReplaceAll(err.Error(), t.token, "***"))
	}
	return nil
}

func (t *TelegramSender) Name() string { return "telegram" }
