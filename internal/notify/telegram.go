package notify

import (
	"context"
	"fmt"
	"html"

	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

const telegramAPIURL = "https://api.telegram.org"

// Telegram sends notifications via the Telegram Bot API.
type Telegram struct {
	baseNotifier
	apiURL              string
	token               string
	chatID              string
	disableNotification bool
}

// Send posts an HTML message to the configured Telegram chat.
func (t *Telegram) Send(ctx context.Context, _ model.Event, title, message string) error {
	text := html.EscapeString(message)
	if title != "" {
		text = fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), text)
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
		"disable_notification":     t.disableNotification,
	}
	return t.postJSON(ctx, fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token), payload)
}
